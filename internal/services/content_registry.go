package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/validator"
)

// TypeSpec is the structural contract of one question type
type TypeSpec struct {
	Type          models.QuestionType
	Stage         models.Stage
	Method        models.ValidationMethod
	Composite     bool
	RequiresAudio bool

	parse   func(p *payload) models.QuestionContent
	compare comparator
}

// ContentRegistry holds the contract of every supported question type
type ContentRegistry struct {
	specs map[models.QuestionType]TypeSpec
}

func NewContentRegistry() *ContentRegistry {
	specs := []TypeSpec{
		// Vocabulary
		{Type: models.ImageToMultipleChoices, Stage: models.StageVocabulary, Method: models.ValidationAuto, parse: parseImageToMultipleChoices, compare: compareOption},
		{Type: models.Wordbox, Stage: models.StageVocabulary, Method: models.ValidationIA, parse: parseWordbox},
		{Type: models.Spelling, Stage: models.StageVocabulary, Method: models.ValidationIA, RequiresAudio: true, parse: parseSpelling},
		{Type: models.WordAssociations, Stage: models.StageVocabulary, Method: models.ValidationIA, parse: parseWordAssociations},

		// Grammar
		{Type: models.Unscramble, Stage: models.StageGrammar, Method: models.ValidationAuto, parse: parseUnscramble, compare: compareOrdered},
		{Type: models.Tenses, Stage: models.StageGrammar, Method: models.ValidationAuto, parse: parseTenses, compare: compareOption},
		{Type: models.TagIt, Stage: models.StageGrammar, Method: models.ValidationAuto, parse: parseTagIt, compare: compareTagSet},
		{Type: models.ReportIt, Stage: models.StageGrammar, Method: models.ValidationIA, parse: parseReportIt},
		{Type: models.ReadIt, Stage: models.StageGrammar, Method: models.ValidationAuto, Composite: true, parse: parseReadIt, compare: compareBooleanSubs},

		// Listening
		{Type: models.WordMatch, Stage: models.StageListening, Method: models.ValidationAuto, parse: parseWordMatch, compare: compareOption},
		{Type: models.Gossip, Stage: models.StageListening, Method: models.ValidationIA, RequiresAudio: true, parse: parseGossip},
		{Type: models.TopicBasedAudio, Stage: models.StageListening, Method: models.ValidationAuto, Composite: true, parse: parseTopicBasedAudio, compare: compareOptionSubs},
		{Type: models.LyricsTraining, Stage: models.StageListening, Method: models.ValidationAuto, parse: parseLyricsTraining, compare: compareOption},

		// Writing
		{Type: models.SentenceMaker, Stage: models.StageWriting, Method: models.ValidationIA, parse: parseSentenceMaker},
		{Type: models.Tales, Stage: models.StageWriting, Method: models.ValidationIA, parse: parseTales},
		{Type: models.FastTest, Stage: models.StageWriting, Method: models.ValidationAuto, parse: parseFastTest, compare: compareOption},

		// Speaking
		{Type: models.Superbrain, Stage: models.StageSpeaking, Method: models.ValidationIA, RequiresAudio: true, parse: parseSuperbrain},
		{Type: models.TellMeAboutIt, Stage: models.StageSpeaking, Method: models.ValidationIA, RequiresAudio: true, parse: parseTellMeAboutIt},
		{Type: models.Debate, Stage: models.StageSpeaking, Method: models.ValidationIA, RequiresAudio: true, parse: parseDebate},
	}

	r := &ContentRegistry{specs: make(map[models.QuestionType]TypeSpec, len(specs))}
	for _, spec := range specs {
		r.specs[spec.Type] = spec
	}
	return r
}

func (r *ContentRegistry) Spec(questionType models.QuestionType) (TypeSpec, bool) {
	spec, ok := r.specs[questionType]
	return spec, ok
}

// Validate decodes the raw payload of req into the content variant of
// req.Type and checks every structural rule of that type. All violations are
// reported together.
func (r *ContentRegistry) Validate(req *models.QuestionCreateRequest) (models.QuestionContent, error) {
	spec, ok := r.specs[req.Type]
	if !ok {
		return nil, NewStructuralValidationError(req.Type, validator.ValidationErrors{{
			Field:   "type",
			Message: fmt.Sprintf("Unsupported question type '%s'", req.Type),
			Value:   req.Type,
			Rule:    "question_type",
		}})
	}

	p := &payload{req: req}
	content := spec.parse(p)

	// AUTO types may be graded by the adjudicator instead; the reverse has no comparator
	if req.ValidationMethod != "" && req.ValidationMethod != spec.Method && (spec.Method == models.ValidationIA || spec.Composite) {
		p.fail("validation_method", "validation_method",
			fmt.Sprintf("Validation method must be %s for %s questions", spec.Method, spec.Type), req.ValidationMethod)
	}

	if len(p.errs) > 0 {
		return nil, NewStructuralValidationError(req.Type, p.errs)
	}
	return content, nil
}

// ValidateSubQuestion checks one sub-question entry for a composite parent type
func (r *ContentRegistry) ValidateSubQuestion(parentType models.QuestionType, raw json.RawMessage) (*SubQuestionDraft, error) {
	spec, ok := r.specs[parentType]
	if !ok || !spec.Composite {
		return nil, ErrNotComposite
	}

	p := &payload{}
	var draft SubQuestionDraft
	switch parentType {
	case models.ReadIt:
		sub := p.readItSub(-1, raw)
		draft = SubQuestionDraft{Text: sub.Content, Options: sub.Options, Answer: sub.Answer, Points: sub.Points}
	case models.TopicBasedAudio:
		sub := p.topicBasedAudioSub(-1, raw)
		draft = SubQuestionDraft{Text: sub.Content, Options: sub.Options, Answer: sub.Answer, Points: sub.Points}
	}

	if len(p.errs) > 0 {
		return nil, NewStructuralValidationError(parentType, p.errs)
	}
	return &draft, nil
}

// SubQuestionDraft is a validated sub-question not yet persisted
type SubQuestionDraft struct {
	Text    string
	Options interface{}
	Answer  interface{}
	Points  int
}

func subQuestionDrafts(content models.QuestionContent) []SubQuestionDraft {
	var drafts []SubQuestionDraft
	switch c := content.(type) {
	case models.ReadItContent:
		for _, sub := range c.SubQuestions {
			drafts = append(drafts, SubQuestionDraft{Text: sub.Content, Options: sub.Options, Answer: sub.Answer, Points: sub.Points})
		}
	case models.TopicBasedAudioContent:
		for _, sub := range c.SubQuestions {
			drafts = append(drafts, SubQuestionDraft{Text: sub.Content, Options: sub.Options, Answer: sub.Answer, Points: sub.Points})
		}
	}
	return drafts
}

// ===== PER-TYPE PARSERS =====

func parseImageToMultipleChoices(p *payload) models.QuestionContent {
	c := models.ImageToMultipleChoicesContent{
		Image:   p.text("content", p.req.Content),
		Options: p.options(),
		Answer:  p.text("answer", p.req.Answer),
	}
	p.answerInOptions(c.Answer, c.Options)
	return c
}

func parseWordbox(p *payload) models.QuestionContent {
	var grid [][]string
	if !present(p.req.Content) {
		p.fail("content", "required", "Content is required", nil)
		return models.WordboxContent{}
	}
	if err := json.Unmarshal(p.req.Content, &grid); err != nil {
		p.fail("content", "type", "Content must be a grid of letters", nil)
		return models.WordboxContent{}
	}
	if len(grid) == 0 || len(grid[0]) == 0 {
		p.fail("content", "min", "Grid must have at least one row and one column", nil)
		return models.WordboxContent{}
	}

	width := len(grid[0])
	counts := make(map[string]int)
	for r, row := range grid {
		if len(row) != width {
			p.fail(fmt.Sprintf("content[%d]", r), "rectangular",
				fmt.Sprintf("All grid rows must have the same length (row %d has %d, expected %d)", r+1, len(row), width), len(row))
			continue
		}
		for col, cell := range row {
			letter := strings.TrimSpace(cell)
			ch, _ := utf8.DecodeRuneInString(letter)
			if utf8.RuneCountInString(letter) != 1 || !unicode.IsLetter(ch) {
				p.fail(fmt.Sprintf("content[%d][%d]", r, col), "letter",
					fmt.Sprintf("Grid cell [%d][%d] must be a single letter, got '%s'", r, col, cell), cell)
				continue
			}
			counts[strings.ToUpper(letter)]++
		}
	}

	var duplicates []string
	for letter, n := range counts {
		if n > 1 {
			duplicates = append(duplicates, letter)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		parts := make([]string, len(duplicates))
		for i, letter := range duplicates {
			parts[i] = fmt.Sprintf("'%s' (%d times)", letter, counts[letter])
		}
		p.fail("content", "unique_letters", "Duplicate letters found in grid: "+strings.Join(parts, ", "), duplicates)
	}

	p.configMatches(models.ConfigGridWidth, width, "grid width")
	p.configMatches(models.ConfigGridHeight, len(grid), "grid height")

	return models.WordboxContent{Grid: grid}
}

func parseSpelling(p *payload) models.QuestionContent {
	return models.SpellingContent{
		Image:  p.text("content", p.req.Content),
		Answer: p.text("answer", p.req.Answer),
	}
}

func parseWordAssociations(p *payload) models.QuestionContent {
	c := models.WordAssociationsContent{Word: p.text("content", p.req.Content)}

	field := "configurations." + models.ConfigMaxAssociations
	value, ok := configValue(p.req.Configurations, models.ConfigMaxAssociations)
	if !ok {
		p.fail(field, "required", fmt.Sprintf("Configuration '%s' is required", models.ConfigMaxAssociations), nil)
		return c
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		p.fail(field, "min", fmt.Sprintf("Configuration '%s' must be a positive integer", models.ConfigMaxAssociations), value)
		return c
	}
	c.MaxAssociations = n
	return c
}

func parseUnscramble(p *payload) models.QuestionContent {
	c := models.UnscrambleContent{
		Words:  p.textList("content", p.req.Content, 2),
		Answer: p.textList("answer", p.req.Answer, 1),
	}
	if c.Words == nil || c.Answer == nil {
		return c
	}

	if len(c.Answer) != len(c.Words) {
		p.fail("answer", "length",
			fmt.Sprintf("Answer length (%d) must match content length (%d)", len(c.Answer), len(c.Words)), len(c.Answer))
		return c
	}
	if !sameWords(c.Words, c.Answer) {
		p.fail("answer", "permutation", "Answer must use exactly the words of the content", c.Answer)
	}
	return c
}

func parseTenses(p *payload) models.QuestionContent {
	c := models.TensesContent{
		Sentence: p.text("content", p.req.Content),
		Options:  p.options(),
		Answer:   p.text("answer", p.req.Answer),
	}
	p.answerInOptions(c.Answer, c.Options)
	return c
}

func parseTagIt(p *payload) models.QuestionContent {
	c := models.TagItContent{Sentence: p.text("content", p.req.Content)}
	tags := p.textOrList("answer", p.req.Answer)
	if tags != nil && len(tags) == 0 {
		p.fail("answer", "min", "Answer must contain at least one tag", nil)
	}
	c.Answer = tags
	return c
}

func parseReportIt(p *payload) models.QuestionContent {
	return models.ReportItContent{
		Sentence: p.text("content", p.req.Content),
		Answer:   p.optionalText("answer", p.req.Answer),
	}
}

func parseReadIt(p *payload) models.QuestionContent {
	c := models.ReadItContent{Passage: p.text("content", p.req.Content)}
	for i, raw := range p.subQuestions() {
		c.SubQuestions = append(c.SubQuestions, p.readItSub(i, raw))
	}
	return c
}

func parseWordMatch(p *payload) models.QuestionContent {
	c := models.WordMatchContent{
		Audio:   p.text("content", p.req.Content),
		Options: p.options(),
		Answer:  p.text("answer", p.req.Answer),
	}
	p.answerInOptions(c.Answer, c.Options)
	return c
}

func parseGossip(p *payload) models.QuestionContent {
	return models.GossipContent{
		Audio:  p.text("content", p.req.Content),
		Answer: p.text("answer", p.req.Answer),
	}
}

func parseTopicBasedAudio(p *payload) models.QuestionContent {
	c := models.TopicBasedAudioContent{Audio: p.text("content", p.req.Content)}
	for i, raw := range p.subQuestions() {
		c.SubQuestions = append(c.SubQuestions, p.topicBasedAudioSub(i, raw))
	}
	return c
}

func parseLyricsTraining(p *payload) models.QuestionContent {
	c := models.LyricsTrainingContent{
		Video:   p.text("content", p.req.Content),
		Options: p.options(),
		Answer:  p.text("answer", p.req.Answer),
	}
	p.answerInOptions(c.Answer, c.Options)
	return c
}

func parseSentenceMaker(p *payload) models.QuestionContent {
	return models.SentenceMakerContent{Images: p.images()}
}

func parseTales(p *payload) models.QuestionContent {
	return models.TalesContent{Images: p.images()}
}

func parseFastTest(p *payload) models.QuestionContent {
	c := models.FastTestContent{
		Words:   p.textList("content", p.req.Content, 2),
		Options: p.options(),
		Answer:  p.text("answer", p.req.Answer),
	}
	if len(c.Words) > 2 {
		p.fail("content", "pair", fmt.Sprintf("Content must be a word pair, got %d words", len(c.Words)), c.Words)
	}
	p.answerInOptions(c.Answer, c.Options)
	return c
}

func parseSuperbrain(p *payload) models.QuestionContent {
	return models.SuperbrainContent{Prompt: p.text("content", p.req.Content)}
}

func parseTellMeAboutIt(p *payload) models.QuestionContent {
	return models.TellMeAboutItContent{Prompt: p.text("content", p.req.Content)}
}

func parseDebate(p *payload) models.QuestionContent {
	c := models.DebateContent{Topic: p.text("content", p.req.Content)}
	stance := models.DebateStance(strings.ToLower(p.text("answer", p.req.Answer)))
	switch stance {
	case models.StanceSupport, models.StanceOppose:
		c.Stance = stance
	case "":
	default:
		p.fail("answer", "stance", fmt.Sprintf("Stance must be one of: %s, %s (got '%s')", models.StanceSupport, models.StanceOppose, stance), stance)
	}
	return c
}

// ===== PAYLOAD DECODING =====

// payload accumulates structural violations while a request is decoded
type payload struct {
	req  *models.QuestionCreateRequest
	errs validator.ValidationErrors
}

func (p *payload) fail(field, rule, message string, value interface{}) {
	p.errs = append(p.errs, validator.ValidationError{Field: field, Message: message, Value: value, Rule: rule})
}

// text decodes a required, non-blank JSON string
func (p *payload) text(field string, raw json.RawMessage) string {
	if !present(raw) {
		p.fail(field, "required", label(field)+" is required", nil)
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		p.fail(field, "type", label(field)+" must be a string", nil)
		return ""
	}
	if s = strings.TrimSpace(s); s == "" {
		p.fail(field, "required", label(field)+" is required", nil)
	}
	return s
}

func (p *payload) optionalText(field string, raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		p.fail(field, "type", label(field)+" must be a string", nil)
		return ""
	}
	return strings.TrimSpace(s)
}

// textList decodes a list of non-blank strings with at least minLen entries.
// It returns nil when the list is unusable.
func (p *payload) textList(field string, raw json.RawMessage, minLen int) []string {
	if !present(raw) {
		p.fail(field, "required", label(field)+" is required", nil)
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		p.fail(field, "type", label(field)+" must be a list of strings", nil)
		return nil
	}
	return p.checkList(field, list, minLen)
}

// textOrList accepts either one string or a list of strings
func (p *payload) textOrList(field string, raw json.RawMessage) []string {
	if !present(raw) {
		p.fail(field, "required", label(field)+" is required", nil)
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return p.checkList(field, []string{single}, 1)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		p.fail(field, "type", label(field)+" must be a string or a list of strings", nil)
		return nil
	}
	if len(list) == 0 {
		return []string{}
	}
	return p.checkList(field, list, 1)
}

func (p *payload) checkList(field string, list []string, minLen int) []string {
	if len(list) < minLen {
		p.fail(field, "min", fmt.Sprintf("%s must contain at least %d entries", label(field), minLen), len(list))
		return nil
	}
	out := make([]string, len(list))
	ok := true
	for i, v := range list {
		out[i] = strings.TrimSpace(v)
		if out[i] == "" {
			p.fail(fmt.Sprintf("%s[%d]", field, i), "required", fmt.Sprintf("%s entry %d must not be empty", label(field), i+1), nil)
			ok = false
		}
	}
	if !ok {
		return nil
	}
	return out
}

// options decodes the option list: at least two distinct entries
func (p *payload) options() []string {
	options := p.textList("options", p.req.Options, 2)
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		key := strings.ToLower(o)
		if seen[key] {
			p.fail("options", "unique", fmt.Sprintf("Duplicate option '%s'", o), o)
			return nil
		}
		seen[key] = true
	}
	return options
}

func (p *payload) images() []string {
	images := p.textOrList("content", p.req.Content)
	if images != nil && len(images) == 0 {
		p.fail("content", "min", "At least one image is required", nil)
	}
	return images
}

func (p *payload) answerInOptions(answer string, options []string) {
	if answer == "" || len(options) == 0 {
		return
	}
	if !containsFold(options, answer) {
		p.fail("answer", "in_options", "Answer must be one of the options", answer)
	}
}

// configMatches checks an optional numeric configuration against a derived value
func (p *payload) configMatches(key string, want int, what string) {
	value, ok := configValue(p.req.Configurations, key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err != nil || n != want {
		p.fail("configurations."+key, "match", fmt.Sprintf("Configuration '%s' (%s) must match %s (%d)", key, value, what, want), value)
	}
}

func (p *payload) subQuestions() []json.RawMessage {
	var subs []json.RawMessage
	if present(p.req.SubQuestions) {
		if err := json.Unmarshal(p.req.SubQuestions, &subs); err != nil {
			p.fail("sub_questions", "type", "Sub-questions must be a list", nil)
			return nil
		}
	}
	if len(subs) == 0 {
		p.fail("sub_questions", "min", "At least one sub-question is required", nil)
	}
	return subs
}

func (p *payload) readItSub(i int, raw json.RawMessage) models.ReadItSubQuestion {
	field, prefix := subLabel(i)
	var in struct {
		Content string `json:"content"`
		Options []bool `json:"options"`
		Answer  *bool  `json:"answer"`
		Points  int    `json:"points"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		p.fail(field, "type", prefix+" must be an object with content, options (two booleans), answer (boolean) and points", nil)
		return models.ReadItSubQuestion{}
	}

	sub := models.ReadItSubQuestion{Content: strings.TrimSpace(in.Content), Options: in.Options, Points: in.Points}
	if sub.Content == "" {
		p.fail(field+".content", "required", prefix+": content is required", nil)
	}
	if len(in.Options) != 2 || !in.Options[0] || in.Options[1] {
		p.fail(field+".options", "boolean_pair", prefix+": options must be [true, false]", in.Options)
	}
	if in.Answer == nil {
		p.fail(field+".answer", "required", prefix+": answer must be true or false", nil)
	} else {
		sub.Answer = *in.Answer
	}
	if in.Points <= 0 {
		p.fail(field+".points", "min", prefix+": points must be greater than 0", in.Points)
	}
	return sub
}

func (p *payload) topicBasedAudioSub(i int, raw json.RawMessage) models.TopicBasedAudioSubQuestion {
	field, prefix := subLabel(i)
	var in struct {
		Content string   `json:"content"`
		Options []string `json:"options"`
		Answer  string   `json:"answer"`
		Points  int      `json:"points"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		p.fail(field, "type", prefix+" must be an object with content, options, answer and points", nil)
		return models.TopicBasedAudioSubQuestion{}
	}

	sub := models.TopicBasedAudioSubQuestion{
		Content: strings.TrimSpace(in.Content),
		Answer:  strings.TrimSpace(in.Answer),
		Points:  in.Points,
	}
	for _, o := range in.Options {
		if o = strings.TrimSpace(o); o != "" {
			sub.Options = append(sub.Options, o)
		}
	}

	if sub.Content == "" {
		p.fail(field+".content", "required", prefix+": content is required", nil)
	}
	if len(sub.Options) < 2 {
		p.fail(field+".options", "min", prefix+": at least 2 options are required", len(sub.Options))
	}
	if sub.Answer == "" {
		p.fail(field+".answer", "required", prefix+": answer is required", nil)
	} else if len(sub.Options) >= 2 && !containsFold(sub.Options, sub.Answer) {
		p.fail(field+".answer", "in_options", prefix+": answer must be one of the options", sub.Answer)
	}
	if in.Points <= 0 {
		p.fail(field+".points", "min", prefix+": points must be greater than 0", in.Points)
	}
	return sub
}

// ===== HELPERS =====

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func label(field string) string {
	if field == "" {
		return field
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

func subLabel(i int) (field, prefix string) {
	if i < 0 {
		return "sub_question", "Sub-question"
	}
	return fmt.Sprintf("sub_questions[%d]", i), fmt.Sprintf("Sub-question %d", i+1)
}

func configValue(configs []models.Configuration, key string) (string, bool) {
	for _, c := range configs {
		if strings.TrimSpace(c.Key) == key {
			return c.Value, true
		}
	}
	return "", false
}

func containsFold(list []string, value string) bool {
	value = strings.TrimSpace(value)
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), value) {
			return true
		}
	}
	return false
}

// sameWords reports whether both lists hold the same words, ignoring case and order
func sameWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, w := range a {
		counts[strings.ToLower(w)]++
	}
	for _, w := range b {
		key := strings.ToLower(w)
		if counts[key] == 0 {
			return false
		}
		counts[key]--
	}
	return true
}
