package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SAP-F-2025/challenge-service/internal/events"
	"github.com/SAP-F-2025/challenge-service/internal/models"
	"github.com/SAP-F-2025/challenge-service/internal/repositories"
	"github.com/SAP-F-2025/challenge-service/internal/validator"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for the postgres repositories.
// Transactions snapshot the store and restore it when fn fails.
type memStore struct {
	mu sync.Mutex

	questions  map[uint]*models.Question
	answers    []*models.StudentAnswer
	media      []models.QuestionMedia
	challenges map[uint]bool
	schools    map[uint]bool
	students   map[string]*models.Student

	nextQuestionID uint
	nextAnswerID   uint

	// failQuestionInsert makes the Nth question insert fail (1-based)
	failQuestionInsert int
	questionInserts    int

	serializableTxs int
}

func newMemStore() *memStore {
	return &memStore{
		questions:  make(map[uint]*models.Question),
		challenges: map[uint]bool{1: true},
		schools:    make(map[uint]bool),
		students:   make(map[string]*models.Student),
	}
}

func (s *memStore) addStudent(userID string, studentID, schoolID uint) {
	s.students[userID] = &models.Student{ID: studentID, UserID: userID, SchoolID: schoolID, Lifecycle: models.LifecycleActive}
	s.schools[schoolID] = true
}

type memSnapshot struct {
	questions      map[uint]models.Question
	answers        []*models.StudentAnswer
	media          []models.QuestionMedia
	nextQuestionID uint
	nextAnswerID   uint
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		questions:      make(map[uint]models.Question, len(s.questions)),
		answers:        append([]*models.StudentAnswer(nil), s.answers...),
		media:          append([]models.QuestionMedia(nil), s.media...),
		nextQuestionID: s.nextQuestionID,
		nextAnswerID:   s.nextAnswerID,
	}
	for id, q := range s.questions {
		snap.questions[id] = *q
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = make(map[uint]*models.Question, len(snap.questions))
	for id, q := range snap.questions {
		q := q
		s.questions[id] = &q
	}
	s.answers = snap.answers
	s.media = snap.media
	s.nextQuestionID = snap.nextQuestionID
	s.nextAnswerID = snap.nextAnswerID
}

// ===== REPOSITORY =====

type mockRepository struct {
	store *memStore
}

func (m *mockRepository) Question() repositories.QuestionRepository {
	return &mockQuestionRepo{store: m.store}
}
func (m *mockRepository) Answer() repositories.AnswerRepository {
	return &mockAnswerRepo{store: m.store}
}
func (m *mockRepository) Challenge() repositories.ChallengeRepository {
	return &mockChallengeRepo{store: m.store}
}
func (m *mockRepository) School() repositories.SchoolRepository {
	return &mockSchoolRepo{store: m.store}
}
func (m *mockRepository) Student() repositories.StudentRepository {
	return &mockStudentRepo{store: m.store}
}

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	snap := m.store.snapshot()
	if err := fn(m); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

func (m *mockRepository) WithSerializableTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	m.store.mu.Lock()
	m.store.serializableTxs++
	m.store.mu.Unlock()
	return m.WithTransaction(ctx, fn)
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

// ===== QUESTIONS =====

type mockQuestionRepo struct {
	store *memStore
}

func (r *mockQuestionRepo) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.questionInserts++
	if s.failQuestionInsert > 0 && s.questionInserts == s.failQuestionInsert {
		return errors.New("insert failed")
	}

	s.nextQuestionID++
	question.ID = s.nextQuestionID
	question.CreatedAt = time.Now()
	question.UpdatedAt = question.CreatedAt
	stored := *question
	stored.SubQuestions = nil
	stored.Media = nil
	s.questions[question.ID] = &stored
	return nil
}

func (r *mockQuestionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	for _, q := range questions {
		if err := r.Create(ctx, tx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *mockQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, fmt.Errorf("question %d: %w", id, repositories.ErrNotFound)
	}
	out := *q
	return &out, nil
}

func (r *mockQuestionRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	q, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	subs, _ := r.GetSubQuestions(ctx, tx, id)
	for _, sub := range subs {
		q.SubQuestions = append(q.SubQuestions, *sub)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.media {
		if m.QuestionID == id {
			q.Media = append(q.Media, m)
		}
	}
	return q, nil
}

func (r *mockQuestionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	s := r.store
	s.mu.Lock()
	var matched []*models.Question
	for _, q := range s.questions {
		if q.IsSubQuestion() || !q.IsActive() {
			continue
		}
		if filters.ChallengeID != nil && q.ChallengeID != *filters.ChallengeID {
			continue
		}
		if filters.Stage != nil && q.Stage != *filters.Stage {
			continue
		}
		if filters.Type != nil && q.Type != *filters.Type {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(q.Text), strings.ToLower(filters.Search)) {
			continue
		}
		out := *q
		matched = append(matched, &out)
	}
	s.mu.Unlock()

	sortByPosition(matched)
	total := int64(len(matched))
	if filters.Offset >= len(matched) {
		return []*models.Question{}, total, nil
	}
	matched = matched[filters.Offset:]
	if filters.Limit > 0 && len(matched) > filters.Limit {
		matched = matched[:filters.Limit]
	}
	return matched, total, nil
}

func (r *mockQuestionRepo) GetByChallenge(ctx context.Context, tx *gorm.DB, challengeID uint, stage *models.Stage) ([]*models.Question, error) {
	s := r.store
	s.mu.Lock()
	var out []*models.Question
	for _, q := range s.questions {
		if q.IsSubQuestion() || !q.IsActive() || q.ChallengeID != challengeID {
			continue
		}
		if stage != nil && q.Stage != *stage {
			continue
		}
		cp := *q
		out = append(out, &cp)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r *mockQuestionRepo) GetSubQuestions(ctx context.Context, tx *gorm.DB, parentID uint) ([]*models.Question, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Question
	for _, q := range s.questions {
		if q.ParentQuestionID != nil && *q.ParentQuestionID == parentID && q.Lifecycle != models.LifecycleDeleted {
			cp := *q
			out = append(out, &cp)
		}
	}
	sortByPosition(out)
	return out, nil
}

func (r *mockQuestionRepo) NextPosition(ctx context.Context, tx *gorm.DB, challengeID uint, stage models.Stage, parentID *uint) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	max := 0
	for _, q := range s.questions {
		if q.Lifecycle == models.LifecycleDeleted {
			continue
		}
		if parentID != nil {
			if q.ParentQuestionID == nil || *q.ParentQuestionID != *parentID {
				continue
			}
		} else if q.IsSubQuestion() || q.ChallengeID != challengeID || q.Stage != stage {
			continue
		}
		if q.Position > max {
			max = q.Position
		}
	}
	return max + 1, nil
}

func (r *mockQuestionRepo) SumSubQuestionPoints(ctx context.Context, tx *gorm.DB, parentID uint) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, q := range s.questions {
		if q.ParentQuestionID != nil && *q.ParentQuestionID == parentID && q.IsActive() {
			total += q.Points
		}
	}
	return total, nil
}

func (r *mockQuestionRepo) UpdatePoints(ctx context.Context, tx *gorm.DB, id uint, points int) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return fmt.Errorf("question %d: %w", id, repositories.ErrNotFound)
	}
	q.Points = points
	return nil
}

func (r *mockQuestionRepo) UpdateLifecycle(ctx context.Context, tx *gorm.DB, id uint, lifecycle models.Lifecycle) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return fmt.Errorf("question %d: %w", id, repositories.ErrNotFound)
	}
	for _, q := range s.questions {
		if q.Lifecycle == models.LifecycleDeleted {
			continue
		}
		cascades := lifecycle == models.LifecycleDeleted && q.ParentQuestionID != nil && *q.ParentQuestionID == id
		if q.ID == id || cascades {
			q.Lifecycle = lifecycle
		}
	}
	return nil
}

func (r *mockQuestionRepo) AttachMedia(ctx context.Context, tx *gorm.DB, questionID uint, media []models.QuestionMedia) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.media = append(s.media, media...)
	return nil
}

func sortByPosition(questions []*models.Question) {
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].Position != questions[j].Position {
			return questions[i].Position < questions[j].Position
		}
		return questions[i].ID < questions[j].ID
	})
}

// ===== ANSWERS =====

type mockAnswerRepo struct {
	store *memStore
}

func (r *mockAnswerRepo) Create(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.answers {
		if a.QuestionID == answer.QuestionID && a.StudentID == answer.StudentID && a.AttemptNumber == answer.AttemptNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	s.nextAnswerID++
	answer.ID = s.nextAnswerID
	stored := *answer
	s.answers = append(s.answers, &stored)
	return nil
}

func (r *mockAnswerRepo) CountByQuestionAndStudent(ctx context.Context, tx *gorm.DB, questionID, studentID uint) (int64, error) {
	answers, _ := r.GetByQuestionAndStudent(ctx, tx, questionID, studentID)
	return int64(len(answers)), nil
}

func (r *mockAnswerRepo) GetByQuestionAndStudent(ctx context.Context, tx *gorm.DB, questionID, studentID uint) ([]*models.StudentAnswer, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.StudentAnswer
	for _, a := range s.answers {
		if a.QuestionID == questionID && a.StudentID == studentID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockAnswerRepo) GetSchoolAggregates(ctx context.Context, tx *gorm.DB, schoolID uint, questionID *uint) ([]repositories.SchoolQuestionAggregate, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	inSchool := make(map[uint]bool)
	for _, st := range s.students {
		if st.SchoolID == schoolID {
			inSchool[st.ID] = true
		}
	}

	byQuestion := make(map[uint]*repositories.SchoolQuestionAggregate)
	var order []uint
	timeSums := make(map[uint]int)
	for _, a := range s.answers {
		q, ok := s.questions[a.QuestionID]
		if !ok || !inSchool[a.StudentID] || !q.IsActive() {
			continue
		}
		if questionID != nil && q.ID != *questionID {
			continue
		}
		agg, ok := byQuestion[q.ID]
		if !ok {
			agg = &repositories.SchoolQuestionAggregate{
				QuestionID:   q.ID,
				QuestionText: q.Text,
				QuestionType: q.Type,
				Stage:        q.Stage,
				ChallengeID:  q.ChallengeID,
			}
			byQuestion[q.ID] = agg
			order = append(order, q.ID)
		}
		agg.TotalAttempts++
		if a.IsCorrect {
			agg.CorrectAnswers++
		}
		timeSums[q.ID] += a.TimeSpent
	}

	out := make([]repositories.SchoolQuestionAggregate, 0, len(order))
	for _, id := range order {
		agg := byQuestion[id]
		agg.AvgTimeSpent = float64(timeSums[id]) / float64(agg.TotalAttempts)
		out = append(out, *agg)
	}
	return out, nil
}

// ===== REFERENCE DATA =====

type mockChallengeRepo struct {
	store *memStore
}

func (r *mockChallengeRepo) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.challenges[id], nil
}

type mockSchoolRepo struct {
	store *memStore
}

func (r *mockSchoolRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.School, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if !r.store.schools[id] {
		return nil, fmt.Errorf("school %d: %w", id, repositories.ErrNotFound)
	}
	return &models.School{ID: id, Lifecycle: models.LifecycleActive}, nil
}

func (r *mockSchoolRepo) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.schools[id], nil
}

type mockStudentRepo struct {
	store *memStore
}

func (r *mockStudentRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Student, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st, ok := r.store.students[userID]
	if !ok {
		return nil, fmt.Errorf("student %s: %w", userID, repositories.ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

// ===== COLLABORATORS =====

type fakeMediaStore struct {
	mu      sync.Mutex
	uploads []models.MediaFile
	err     error
}

func (f *fakeMediaStore) Upload(ctx context.Context, file models.MediaFile) (*models.StoredMedia, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, file)
	id := fmt.Sprintf("%s/%d-%s", file.Context, len(f.uploads), file.FileName)
	return &models.StoredMedia{ID: id, URL: "http://media.test/challenge-media/" + id}, nil
}

type fakeAdjudicator struct {
	mu       sync.Mutex
	verdict  *models.AdjudicationVerdict
	err      error
	requests []*models.AdjudicationRequest
}

func (f *fakeAdjudicator) Adjudicate(ctx context.Context, req *models.AdjudicationRequest) (*models.AdjudicationVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.verdict, nil
}

// ===== FIXTURE =====

type testEnv struct {
	store       *memStore
	media       *fakeMediaStore
	adjudicator *fakeAdjudicator
	publisher   *events.MockEventPublisher
	questions   QuestionService
	answers     AnswerService
	stats       StatsService
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()
	repo := &mockRepository{store: store}
	env := &testEnv{
		store:       store,
		media:       &fakeMediaStore{},
		adjudicator: &fakeAdjudicator{},
		publisher:   events.NewMockEventPublisher(logger),
	}

	registry := NewContentRegistry()
	v := validator.New()
	env.questions = NewQuestionService(repo, logger, v, registry, env.media, env.publisher, nil)
	env.answers = NewAnswerService(repo, logger, v, registry, env.media, env.adjudicator, env.publisher, nil)
	env.stats = NewStatsService(repo, logger)
	return env
}
