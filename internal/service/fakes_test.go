package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/veriq-app/veriq-go-api/internal/models"
	"github.com/veriq-app/veriq-go-api/internal/repository"
	"github.com/veriq-app/veriq-go-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// memStore is a shared in-memory backing store for the repository fakes.
// The mutating methods reproduce the production compare-and-swap semantics,
// including the responded_at guard and the wallet_credited marker.
type memStore struct {
	mu        sync.Mutex
	questions map[uint]*models.Question
	experts   map[uint]*models.Expert
	entries   map[uint]*models.QueueEntry
	answers   map[uint]*models.Answer
	scores    map[uint]*models.VeracityScore
	txns      map[uint]*models.PaymentTransaction
	rankings  map[uint]*models.ExpertRanking
	seq       uint

	settleErr error
}

func newMemStore() *memStore {
	return &memStore{
		questions: map[uint]*models.Question{},
		experts:   map[uint]*models.Expert{},
		entries:   map[uint]*models.QueueEntry{},
		answers:   map[uint]*models.Answer{},
		scores:    map[uint]*models.VeracityScore{},
		txns:      map[uint]*models.PaymentTransaction{},
		rankings:  map[uint]*models.ExpertRanking{},
	}
}

func (s *memStore) nextID() uint {
	s.seq++
	return s.seq
}

func (s *memStore) addQuestion(q models.Question) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == 0 {
		q.ID = s.nextID()
	}
	if q.Status == "" {
		q.Status = models.QuestionStatusOpen
	}
	s.questions[q.ID] = &q
	return q.ID
}

func (s *memStore) addExpert(e models.Expert) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.nextID()
	}
	s.experts[e.ID] = &e
	return e.ID
}

func (s *memStore) question(id uint) models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.questions[id]
}

func (s *memStore) expert(id uint) models.Expert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.experts[id]
}

func (s *memStore) entriesFor(questionID uint) []models.QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueueEntry
	for _, entry := range s.entries {
		if entry.QuestionID == questionID {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

type fakeQuestionRepo struct{ store *memStore }

func (r *fakeQuestionRepo) GetByID(ctx context.Context, id uint) (models.Question, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	q, ok := r.store.questions[id]
	if !ok {
		return models.Question{}, gorm.ErrRecordNotFound
	}
	return *q, nil
}

func (r *fakeQuestionRepo) Create(ctx context.Context, question *models.Question) error {
	if question.Status == "" {
		question.Status = models.QuestionStatusOpen
	}
	question.ID = r.store.addQuestion(*question)
	return nil
}

func (r *fakeQuestionRepo) ListExpiredAssignments(ctx context.Context, now time.Time) ([]models.Question, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Question
	for _, q := range r.store.questions {
		if q.Status == models.QuestionStatusAssigned && q.AssignmentDue != nil && q.AssignmentDue.Before(now) {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeQuestionRepo) MarkAnswered(ctx context.Context, id uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	q, ok := r.store.questions[id]
	if !ok || q.Status != models.QuestionStatusAssigned {
		return gorm.ErrRecordNotFound
	}
	q.Status = models.QuestionStatusAnswered
	q.AssignedExpertID = nil
	q.AssignmentDue = nil
	return nil
}

type fakeQueueRepo struct{ store *memStore }

func (r *fakeQueueRepo) CreateEntries(ctx context.Context, entries []models.QueueEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range entries {
		if entries[i].ID == 0 {
			entries[i].ID = r.store.nextID()
		}
		stored := entries[i]
		r.store.entries[stored.ID] = &stored
	}
	return nil
}

func (r *fakeQueueRepo) ListByQuestion(ctx context.Context, questionID uint) ([]models.QueueEntry, error) {
	return r.store.entriesFor(questionID), nil
}

func (r *fakeQueueRepo) GetActive(ctx context.Context, questionID uint) (models.QueueEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, entry := range r.store.entries {
		if entry.QuestionID == questionID && entry.Status == models.QueueEntryStatusAssigned {
			return *entry, nil
		}
	}
	return models.QueueEntry{}, gorm.ErrRecordNotFound
}

func (r *fakeQueueRepo) GetByQuestionAndExpert(ctx context.Context, questionID, expertID uint) (models.QueueEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var found *models.QueueEntry
	for _, entry := range r.store.entries {
		if entry.QuestionID == questionID && entry.ExpertID == expertID {
			if found == nil || entry.Position < found.Position {
				found = entry
			}
		}
	}
	if found == nil {
		return models.QueueEntry{}, gorm.ErrRecordNotFound
	}
	return *found, nil
}

func (r *fakeQueueRepo) NextWaiting(ctx context.Context, questionID uint) (models.QueueEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var next *models.QueueEntry
	for _, entry := range r.store.entries {
		if entry.QuestionID == questionID && entry.Status == models.QueueEntryStatusWaiting {
			if next == nil || entry.Position < next.Position {
				next = entry
			}
		}
	}
	if next == nil {
		return models.QueueEntry{}, gorm.ErrRecordNotFound
	}
	return *next, nil
}

func (r *fakeQueueRepo) Activate(ctx context.Context, entryID, questionID, expertID uint, deadline time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, entry := range r.store.entries {
		if entry.QuestionID == questionID && entry.Status == models.QueueEntryStatusAssigned {
			return repository.ErrConflict
		}
	}
	entry, ok := r.store.entries[entryID]
	if !ok || entry.Status != models.QueueEntryStatusWaiting {
		return repository.ErrConflict
	}
	question, ok := r.store.questions[questionID]
	if !ok || (question.Status != models.QuestionStatusOpen && question.Status != models.QuestionStatusAssigned) {
		return repository.ErrConflict
	}

	now := time.Now()
	entry.Status = models.QueueEntryStatusAssigned
	entry.AssignedAt = &now
	question.Status = models.QuestionStatusAssigned
	question.AssignedExpertID = &expertID
	due := deadline
	question.AssignmentDue = &due
	return nil
}

func (r *fakeQueueRepo) RecordResponse(ctx context.Context, entryID uint, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entry, ok := r.store.entries[entryID]
	if !ok || entry.Status != models.QueueEntryStatusAssigned || entry.RespondedAt != nil {
		return repository.ErrConflict
	}
	stamp := at
	entry.RespondedAt = &stamp
	return nil
}

func (r *fakeQueueRepo) Resolve(ctx context.Context, entry models.QueueEntry, target string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if !entry.CanTransition(target) {
		return repository.ErrConflict
	}
	stored, ok := r.store.entries[entry.ID]
	if !ok || stored.Status != models.QueueEntryStatusAssigned || stored.RespondedAt != nil {
		return repository.ErrConflict
	}
	stored.Status = target
	if target == models.QueueEntryStatusDeclined {
		stamp := at
		stored.RespondedAt = &stamp
	}
	if question, ok := r.store.questions[entry.QuestionID]; ok {
		if question.AssignedExpertID != nil && *question.AssignedExpertID == entry.ExpertID {
			question.AssignedExpertID = nil
			question.AssignmentDue = nil
		}
	}
	return nil
}

func (r *fakeQueueRepo) ForfeitActive(ctx context.Context, questionID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var active *models.QueueEntry
	for _, entry := range r.store.entries {
		if entry.QuestionID == questionID && entry.Status == models.QueueEntryStatusAssigned {
			active = entry
			break
		}
	}
	if active == nil {
		return repository.ErrConflict
	}
	active.Status = models.QueueEntryStatusDeclined
	if question, ok := r.store.questions[questionID]; ok {
		question.AssignedExpertID = nil
		question.AssignmentDue = nil
	}
	return nil
}

func (r *fakeQueueRepo) MarkNoExperts(ctx context.Context, questionID uint) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	question, ok := r.store.questions[questionID]
	if !ok {
		return false, nil
	}
	if question.Status != models.QuestionStatusOpen && question.Status != models.QuestionStatusAssigned {
		return false, nil
	}
	question.Status = models.QuestionStatusNoExperts
	question.AssignedExpertID = nil
	question.AssignmentDue = nil
	return true, nil
}

type fakeExpertRepo struct{ store *memStore }

func (r *fakeExpertRepo) GetByID(ctx context.Context, id uint) (models.Expert, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	expert, ok := r.store.experts[id]
	if !ok {
		return models.Expert{}, gorm.ErrRecordNotFound
	}
	return *expert, nil
}

func (r *fakeExpertRepo) ListEligible(ctx context.Context) ([]models.Expert, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Expert
	for _, expert := range r.store.experts {
		if expert.Eligible() {
			out = append(out, *expert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeExpertRepo) Create(ctx context.Context, expert *models.Expert) error {
	expert.ID = r.store.addExpert(*expert)
	return nil
}

type fakeAnswerRepo struct{ store *memStore }

func (r *fakeAnswerRepo) Create(ctx context.Context, answer *models.Answer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if answer.Status == "" {
		answer.Status = models.AnswerStatusUnderReview
	}
	if answer.PaymentStatus == "" {
		answer.PaymentStatus = models.PaymentStatusPending
	}
	if answer.ID == 0 {
		answer.ID = r.store.nextID()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now()
	}
	stored := *answer
	r.store.answers[stored.ID] = &stored
	return nil
}

func (r *fakeAnswerRepo) GetByID(ctx context.Context, id uint) (models.Answer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	answer, ok := r.store.answers[id]
	if !ok {
		return models.Answer{}, gorm.ErrRecordNotFound
	}
	loaded := *answer
	if question, ok := r.store.questions[answer.QuestionID]; ok {
		loaded.Question = *question
	}
	if expert, ok := r.store.experts[answer.ExpertID]; ok {
		loaded.Expert = *expert
	}
	return loaded, nil
}

func (r *fakeAnswerRepo) CountByExpertSince(ctx context.Context, expertID uint, since time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, answer := range r.store.answers {
		if answer.ExpertID == expertID && !answer.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeAnswerRepo) SaveVeracity(ctx context.Context, score *models.VeracityScore) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if score.ID == 0 {
		score.ID = r.store.nextID()
	}
	stored := *score
	r.store.scores[stored.AnswerID] = &stored
	return nil
}

func (r *fakeAnswerRepo) GetVeracityByAnswer(ctx context.Context, answerID uint) (models.VeracityScore, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	score, ok := r.store.scores[answerID]
	if !ok {
		return models.VeracityScore{}, gorm.ErrRecordNotFound
	}
	return *score, nil
}

func (r *fakeAnswerRepo) MarkRejected(ctx context.Context, answerID uint, reason string, reviewer *uint, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	answer, ok := r.store.answers[answerID]
	if !ok || answer.Status != models.AnswerStatusUnderReview {
		return repository.ErrConflict
	}
	answer.Status = models.AnswerStatusRejected
	answer.PaymentStatus = models.PaymentStatusRejected
	answer.RejectReason = reason
	stamp := at
	answer.ReviewedAt = &stamp
	if reviewer != nil {
		id := *reviewer
		answer.ReviewedBy = &id
	}
	return nil
}

func (r *fakeAnswerRepo) MarkApproved(ctx context.Context, answerID uint, reviewer uint, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	answer, ok := r.store.answers[answerID]
	if !ok || answer.Status != models.AnswerStatusUnderReview {
		return repository.ErrConflict
	}
	answer.Status = models.AnswerStatusApproved
	id := reviewer
	answer.ReviewedBy = &id
	stamp := at
	answer.ReviewedAt = &stamp
	return nil
}

func (r *fakeAnswerRepo) MarkPaid(ctx context.Context, answerID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	answer, ok := r.store.answers[answerID]
	if !ok || answer.PaymentStatus != models.PaymentStatusPending {
		return repository.ErrConflict
	}
	answer.PaymentStatus = models.PaymentStatusPaid
	return nil
}

type fakeTxnRepo struct{ store *memStore }

func (r *fakeTxnRepo) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}
	if txn.ID == 0 {
		txn.ID = r.store.nextID()
	}
	txn.UpdatedAt = time.Now()
	stored := *txn
	r.store.txns[stored.ID] = &stored
	return nil
}

func (r *fakeTxnRepo) GetByID(ctx context.Context, id uint) (models.PaymentTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	txn, ok := r.store.txns[id]
	if !ok {
		return models.PaymentTransaction{}, gorm.ErrRecordNotFound
	}
	return *txn, nil
}

func (r *fakeTxnRepo) GetByAnswerID(ctx context.Context, answerID uint) (models.PaymentTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, txn := range r.store.txns {
		if txn.AnswerID == answerID {
			return *txn, nil
		}
	}
	return models.PaymentTransaction{}, gorm.ErrRecordNotFound
}

func (r *fakeTxnRepo) MarkProcessing(ctx context.Context, id uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	txn, ok := r.store.txns[id]
	if !ok {
		return repository.ErrConflict
	}
	if txn.Status != models.TransactionStatusPending && txn.Status != models.TransactionStatusFailed {
		return repository.ErrConflict
	}
	txn.Status = models.TransactionStatusProcessing
	txn.ErrorMessage = ""
	txn.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTxnRepo) SettleFunds(ctx context.Context, params repository.SettleFundsParams) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.settleErr != nil {
		return false, r.store.settleErr
	}
	txn, ok := r.store.txns[params.TransactionID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if txn.WalletCredited {
		return false, nil
	}
	txn.WalletCredited = true

	if expert, ok := r.store.experts[params.ExpertID]; ok {
		expert.WalletBalance += params.ExpertAmount
		expert.AnswerCount++
	}

	ranking, ok := r.store.rankings[params.ExpertID]
	if !ok {
		ranking = &models.ExpertRanking{ID: r.store.nextID(), ExpertID: params.ExpertID}
		r.store.rankings[params.ExpertID] = ranking
	}
	previous := float64(ranking.TotalAnswers)
	ranking.TotalAnswers++
	ranking.AcceptedAnswers++
	ranking.TotalEarnings += params.ExpertAmount
	ranking.AvgVeracityScore += (float64(params.VeracityScore) - ranking.AvgVeracityScore) / (previous + 1)
	ranking.AvgResponseMinutes += (params.ResponseMinutes - ranking.AvgResponseMinutes) / (previous + 1)
	return true, nil
}

func (r *fakeTxnRepo) Complete(ctx context.Context, id uint, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	txn, ok := r.store.txns[id]
	if !ok || txn.Status != models.TransactionStatusProcessing {
		return repository.ErrConflict
	}
	txn.Status = models.TransactionStatusCompleted
	stamp := at
	txn.ProcessedAt = &stamp
	txn.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTxnRepo) Fail(ctx context.Context, id uint, message string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	txn, ok := r.store.txns[id]
	if !ok || txn.Status != models.TransactionStatusProcessing {
		return repository.ErrConflict
	}
	txn.Status = models.TransactionStatusFailed
	txn.ErrorMessage = message
	txn.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTxnRepo) ListStuck(ctx context.Context, olderThan time.Time) ([]models.PaymentTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.PaymentTransaction
	for _, txn := range r.store.txns {
		if txn.Status == models.TransactionStatusProcessing && txn.UpdatedAt.Before(olderThan) {
			out = append(out, *txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRankingRepo struct{ store *memStore }

func (r *fakeRankingRepo) GetByExpert(ctx context.Context, expertID uint) (models.ExpertRanking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ranking, ok := r.store.rankings[expertID]
	if !ok {
		ranking = &models.ExpertRanking{ID: r.store.nextID(), ExpertID: expertID}
		r.store.rankings[expertID] = ranking
	}
	return *ranking, nil
}

func (r *fakeRankingRepo) ApplyRejection(ctx context.Context, expertID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ranking, ok := r.store.rankings[expertID]
	if !ok {
		ranking = &models.ExpertRanking{ID: r.store.nextID(), ExpertID: expertID}
		r.store.rankings[expertID] = ranking
	}
	ranking.TotalAnswers++
	ranking.RejectedAnswers++
	return nil
}

func (r *fakeRankingRepo) ApplyExpiryPenalty(ctx context.Context, expertID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ranking, ok := r.store.rankings[expertID]
	if !ok {
		ranking = &models.ExpertRanking{ID: r.store.nextID(), ExpertID: expertID}
		r.store.rankings[expertID] = ranking
	}
	ranking.ExpiredAssignments++
	if ranking.OverallScore >= 2.0 {
		ranking.OverallScore -= 2.0
	} else {
		ranking.OverallScore = 0
	}
	return nil
}

func (r *fakeRankingRepo) ListAll(ctx context.Context) ([]models.ExpertRanking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.ExpertRanking
	for _, ranking := range r.store.rankings {
		out = append(out, *ranking)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpertID < out[j].ExpertID })
	return out, nil
}

func (r *fakeRankingRepo) SaveScores(ctx context.Context, ranking *models.ExpertRanking) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.rankings[ranking.ExpertID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.PerformanceScore = ranking.PerformanceScore
	stored.SpeedScore = ranking.SpeedScore
	stored.FrequencyScore = ranking.FrequencyScore
	stored.OverallScore = ranking.OverallScore
	return nil
}

func (r *fakeRankingRepo) SetRanks(ctx context.Context, rankings []models.ExpertRanking) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, ranking := range rankings {
		if stored, ok := r.store.rankings[ranking.ExpertID]; ok {
			stored.GlobalRank = ranking.GlobalRank
		}
	}
	return nil
}

type fakeExtractor struct {
	extraction ai.Extraction
	err        error
}

func (f *fakeExtractor) Extract(ctx context.Context, questionText string) (ai.Extraction, error) {
	if f.err != nil {
		return ai.Extraction{}, f.err
	}
	return f.extraction, nil
}

type fakeAssessor struct {
	result ai.AssessmentResult
	err    error
}

func (f *fakeAssessor) Assess(ctx context.Context, input ai.AssessmentInput) (ai.AssessmentResult, error) {
	if f.err != nil {
		return ai.AssessmentResult{}, f.err
	}
	return f.result, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	offers []uint
}

func (n *recordingNotifier) AssignmentOffered(ctx context.Context, expertID, questionID uint, deadline time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offers = append(n.offers, expertID)
}

func uniformAssessment(score int) ai.AssessmentResult {
	dim := ai.Dimension{Score: score, Evidence: "checked"}
	return ai.AssessmentResult{
		Identity:      dim,
		ProfileMatch:  dim,
		AnswerQuality: dim,
		Documents:     dim,
		Contradiction: dim,
		Corroboration: dim,
	}
}
