package models

// ===== QUESTION CONTENT VARIANTS =====

// QuestionContent is the typed payload of one question type. The set of
// implementations is closed: every variant lives in this file.
type QuestionContent interface {
	QuestionType() QuestionType
	// Columns splits the variant into the persisted content, options and answer values.
	Columns() (content, options, answer interface{})
	questionContent()
}

type ImageToMultipleChoicesContent struct {
	Image   string   `json:"image"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

type WordboxContent struct {
	Grid [][]string `json:"grid"`
}

type SpellingContent struct {
	Image  string `json:"image"`
	Answer string `json:"answer"`
}

type WordAssociationsContent struct {
	Word            string `json:"word"`
	MaxAssociations int    `json:"max_associations"`
}

type UnscrambleContent struct {
	Words  []string `json:"words"`
	Answer []string `json:"answer"`
}

type TensesContent struct {
	Sentence string   `json:"sentence"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

type TagItContent struct {
	Sentence string   `json:"sentence"`
	Answer   []string `json:"answer"`
}

type ReportItContent struct {
	Sentence string `json:"sentence"`
	Answer   string `json:"answer,omitempty"`
}

type ReadItContent struct {
	Passage      string              `json:"passage"`
	SubQuestions []ReadItSubQuestion `json:"sub_questions"`
}

type ReadItSubQuestion struct {
	Content string `json:"content"`
	Options []bool `json:"options"`
	Answer  bool   `json:"answer"`
	Points  int    `json:"points"`
}

type WordMatchContent struct {
	Audio   string   `json:"audio"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

type GossipContent struct {
	Audio  string `json:"audio"`
	Answer string `json:"answer"`
}

type TopicBasedAudioContent struct {
	Audio        string                       `json:"audio"`
	SubQuestions []TopicBasedAudioSubQuestion `json:"sub_questions"`
}

type TopicBasedAudioSubQuestion struct {
	Content string   `json:"content"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
	Points  int      `json:"points"`
}

type LyricsTrainingContent struct {
	Video   string   `json:"video"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

type SentenceMakerContent struct {
	Images []string `json:"images"`
}

type TalesContent struct {
	Images []string `json:"images"`
}

type FastTestContent struct {
	Words   []string `json:"words"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

type SuperbrainContent struct {
	Prompt string `json:"prompt"`
}

type TellMeAboutItContent struct {
	Prompt string `json:"prompt"`
}

type DebateStance string

const (
	StanceSupport DebateStance = "support"
	StanceOppose  DebateStance = "oppose"
)

type DebateContent struct {
	Topic  string       `json:"topic"`
	Stance DebateStance `json:"stance"`
}

func (ImageToMultipleChoicesContent) QuestionType() QuestionType { return ImageToMultipleChoices }
func (WordboxContent) QuestionType() QuestionType                { return Wordbox }
func (SpellingContent) QuestionType() QuestionType               { return Spelling }
func (WordAssociationsContent) QuestionType() QuestionType       { return WordAssociations }
func (UnscrambleContent) QuestionType() QuestionType             { return Unscramble }
func (TensesContent) QuestionType() QuestionType                 { return Tenses }
func (TagItContent) QuestionType() QuestionType                  { return TagIt }
func (ReportItContent) QuestionType() QuestionType               { return ReportIt }
func (ReadItContent) QuestionType() QuestionType                 { return ReadIt }
func (WordMatchContent) QuestionType() QuestionType              { return WordMatch }
func (GossipContent) QuestionType() QuestionType                 { return Gossip }
func (TopicBasedAudioContent) QuestionType() QuestionType        { return TopicBasedAudio }
func (LyricsTrainingContent) QuestionType() QuestionType         { return LyricsTraining }
func (SentenceMakerContent) QuestionType() QuestionType          { return SentenceMaker }
func (TalesContent) QuestionType() QuestionType                  { return Tales }
func (FastTestContent) QuestionType() QuestionType               { return FastTest }
func (SuperbrainContent) QuestionType() QuestionType             { return Superbrain }
func (TellMeAboutItContent) QuestionType() QuestionType          { return TellMeAboutIt }
func (DebateContent) QuestionType() QuestionType                 { return Debate }

func (c ImageToMultipleChoicesContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Image, c.Options, c.Answer
}

func (c WordboxContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Grid, nil, nil
}

func (c SpellingContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Image, nil, c.Answer
}

func (c WordAssociationsContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Word, nil, nil
}

func (c UnscrambleContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Words, nil, c.Answer
}

func (c TensesContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Sentence, c.Options, c.Answer
}

func (c TagItContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Sentence, nil, c.Answer
}

func (c ReportItContent) Columns() (interface{}, interface{}, interface{}) {
	if c.Answer == "" {
		return c.Sentence, nil, nil
	}
	return c.Sentence, nil, c.Answer
}

// Sub-questions are persisted as rows of their own.
func (c ReadItContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Passage, nil, nil
}

func (c WordMatchContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Audio, c.Options, c.Answer
}

func (c GossipContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Audio, nil, c.Answer
}

func (c TopicBasedAudioContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Audio, nil, nil
}

func (c LyricsTrainingContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Video, c.Options, c.Answer
}

func (c SentenceMakerContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Images, nil, nil
}

func (c TalesContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Images, nil, nil
}

func (c FastTestContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Words, c.Options, c.Answer
}

func (c SuperbrainContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Prompt, nil, nil
}

func (c TellMeAboutItContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Prompt, nil, nil
}

func (c DebateContent) Columns() (interface{}, interface{}, interface{}) {
	return c.Topic, nil, c.Stance
}

func (ImageToMultipleChoicesContent) questionContent() {}
func (WordboxContent) questionContent()                {}
func (SpellingContent) questionContent()               {}
func (WordAssociationsContent) questionContent()       {}
func (UnscrambleContent) questionContent()             {}
func (TensesContent) questionContent()                 {}
func (TagItContent) questionContent()                  {}
func (ReportItContent) questionContent()               {}
func (ReadItContent) questionContent()                 {}
func (WordMatchContent) questionContent()              {}
func (GossipContent) questionContent()                 {}
func (TopicBasedAudioContent) questionContent()        {}
func (LyricsTrainingContent) questionContent()         {}
func (SentenceMakerContent) questionContent()          {}
func (TalesContent) questionContent()                  {}
func (FastTestContent) questionContent()               {}
func (SuperbrainContent) questionContent()             {}
func (TellMeAboutItContent) questionContent()          {}
func (DebateContent) questionContent()                 {}
