package models

import (
	"time"

	"gorm.io/datatypes"
)

type Stage string

const (
	StageVocabulary Stage = "VOCABULARY"
	StageGrammar    Stage = "GRAMMAR"
	StageListening  Stage = "LISTENING"
	StageWriting    Stage = "WRITING"
	StageSpeaking   Stage = "SPEAKING"
)

func (s Stage) IsValid() bool {
	switch s {
	case StageVocabulary, StageGrammar, StageListening, StageWriting, StageSpeaking:
		return true
	}
	return false
}

type QuestionType string

const (
	// Vocabulary
	ImageToMultipleChoices QuestionType = "image_to_multiple_choices"
	Wordbox                QuestionType = "wordbox"
	Spelling               QuestionType = "spelling"
	WordAssociations       QuestionType = "word_associations"

	// Grammar
	Unscramble QuestionType = "unscramble"
	Tenses     QuestionType = "tenses"
	TagIt      QuestionType = "tag_it"
	ReportIt   QuestionType = "report_it"
	ReadIt     QuestionType = "read_it"

	// Listening
	WordMatch       QuestionType = "word_match"
	Gossip          QuestionType = "gossip"
	TopicBasedAudio QuestionType = "topic_based_audio"
	LyricsTraining  QuestionType = "lyrics_training"

	// Writing
	SentenceMaker QuestionType = "sentence_maker"
	Tales         QuestionType = "tales"
	FastTest      QuestionType = "fast_test"

	// Speaking
	Superbrain    QuestionType = "superbrain"
	TellMeAboutIt QuestionType = "tell_me_about_it"
	Debate        QuestionType = "debate"
)

var AllQuestionTypes = []QuestionType{
	ImageToMultipleChoices, Wordbox, Spelling, WordAssociations,
	Unscramble, Tenses, TagIt, ReportIt, ReadIt,
	WordMatch, Gossip, TopicBasedAudio, LyricsTraining,
	SentenceMaker, Tales, FastTest,
	Superbrain, TellMeAboutIt, Debate,
}

func (t QuestionType) IsValid() bool {
	for _, known := range AllQuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

type ValidationMethod string

const (
	ValidationAuto ValidationMethod = "AUTO"
	ValidationIA   ValidationMethod = "IA"
)

// Lifecycle replaces the deleted_at / is_active pair. Only active questions
// are listed, answerable and counted in statistics.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleInactive Lifecycle = "inactive"
	LifecycleDeleted  Lifecycle = "deleted"
)

func (l Lifecycle) IsValid() bool {
	return l == LifecycleActive || l == LifecycleInactive || l == LifecycleDeleted
}

type Question struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	ChallengeID uint         `json:"challenge_id" gorm:"not null;index:idx_questions_scope,priority:1"`
	Stage       Stage        `json:"stage" gorm:"type:varchar(20);not null;index:idx_questions_scope,priority:2"`
	Phase       string       `json:"phase" gorm:"size:100"`
	Position    int          `json:"position" gorm:"not null"`
	Type        QuestionType `json:"type" gorm:"type:varchar(40);not null;index"`
	Points      int          `json:"points" gorm:"not null;default:0"`
	TimeLimit   int          `json:"time_limit" gorm:"not null;default:0"`
	MaxAttempts int          `json:"max_attempts" gorm:"not null"`

	Text             string           `json:"text" gorm:"type:text"`
	Instructions     string           `json:"instructions" gorm:"type:text"`
	ValidationMethod ValidationMethod `json:"validation_method" gorm:"type:varchar(10);not null"`

	// Variant payload, decoded through the content registry
	Content        datatypes.JSON                     `json:"content" gorm:"type:jsonb"`
	Options        datatypes.JSON                     `json:"options" gorm:"type:jsonb"`
	Answer         datatypes.JSON                     `json:"answer" gorm:"type:jsonb"`
	Configurations datatypes.JSONSlice[Configuration] `json:"configurations" gorm:"type:jsonb"`

	ParentQuestionID *uint     `json:"parent_question_id" gorm:"index"`
	Lifecycle        Lifecycle `json:"lifecycle" gorm:"type:varchar(10);not null;default:active;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	SubQuestions []Question      `json:"sub_questions,omitempty" gorm:"foreignKey:ParentQuestionID"`
	Media        []QuestionMedia `json:"media,omitempty" gorm:"foreignKey:QuestionID"`
}

func (q *Question) IsSubQuestion() bool {
	return q.ParentQuestionID != nil
}

func (q *Question) IsActive() bool {
	return q.Lifecycle == LifecycleActive
}

// ConfigValue returns the value of the named configuration entry.
func (q *Question) ConfigValue(key string) (string, bool) {
	for _, c := range q.Configurations {
		if c.Key == key {
			return c.Value, true
		}
	}
	return "", false
}

type Configuration struct {
	Key   string `json:"key" validate:"required,max=100"`
	Value string `json:"value"`
}

const (
	ConfigMaxAssociations = "maxAssociations"
	ConfigGridWidth       = "gridWidth"
	ConfigGridHeight      = "gridHeight"
)

// QuestionMedia links a stored file to a question.
type QuestionMedia struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	QuestionID uint      `json:"question_id" gorm:"not null;index"`
	MediaID    string    `json:"media_id" gorm:"not null;size:255"`
	URL        string    `json:"url" gorm:"not null;size:500"`
	Context    string    `json:"context" gorm:"size:50"` // "image", "audio", "video"
	Position   int       `json:"position" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
}

func (QuestionMedia) TableName() string {
	return "question_media"
}
