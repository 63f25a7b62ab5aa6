package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/enrollment-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-api/pkg/errors"
)

// memStore is an in-memory stand-in for the three enrollment tables. The
// transactor snapshots it on begin and restores the snapshot on rollback.
type memStore struct {
	mu          sync.Mutex
	subjects    map[int64]models.Subject
	enrollments map[int64]models.Enrollment
	events      map[int64]models.StatusEvent
	nextID      int64
	writes      int

	// knobs
	rejectSubjectInsert bool
	zeroSubjectUpdate   bool
	zeroEnrollUpdate    bool
	hideNextKeyLookup   bool
	failClose           bool
}

func newMemStore() *memStore {
	return &memStore{
		subjects:    map[int64]models.Subject{},
		enrollments: map[int64]models.Enrollment{},
		events:      map[int64]models.StatusEvent{},
		nextID:      100,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) putSubject(s models.Subject) {
	m.subjects[s.ID] = s
}

func (m *memStore) putEnrollment(e models.Enrollment) {
	m.enrollments[e.AttendingID] = e
}

func (m *memStore) putEvent(e models.StatusEvent) {
	m.events[e.ID] = e
}

func (m *memStore) timeline(attendingID int64) []models.StatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timelineLocked(attendingID)
}

func (m *memStore) timelineLocked(attendingID int64) []models.StatusEvent {
	events := []models.StatusEvent{}
	for _, e := range m.events {
		if e.AttendingID == attendingID {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartDate.Equal(events[j].StartDate) {
			return events[i].ID < events[j].ID
		}
		return events[i].StartDate.Before(events[j].StartDate)
	})
	return events
}

type memSnapshot struct {
	subjects    map[int64]models.Subject
	enrollments map[int64]models.Enrollment
	events      map[int64]models.StatusEvent
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		subjects:    make(map[int64]models.Subject, len(m.subjects)),
		enrollments: make(map[int64]models.Enrollment, len(m.enrollments)),
		events:      make(map[int64]models.StatusEvent, len(m.events)),
	}
	for k, v := range m.subjects {
		snap.subjects[k] = v
	}
	for k, v := range m.enrollments {
		snap.enrollments[k] = v
	}
	for k, v := range m.events {
		snap.events[k] = v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects, m.enrollments, m.events = snap.subjects, snap.enrollments, snap.events
}

type fakeTx struct {
	store     *memStore
	commits   int
	rollbacks int
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		t.rollbacks++
		return err
	}
	t.commits++
	return nil
}

type fakeSubjects struct{ *memStore }

func (f fakeSubjects) FindByID(ctx context.Context, id int64) (*models.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeSubjects) List(ctx context.Context, criteria models.SubjectCriteria) ([]models.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subjects := []models.Subject{}
	for _, s := range f.subjects {
		if s.Deleted && !criteria.IncludeDeleted {
			continue
		}
		subjects = append(subjects, s)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	return subjects, nil
}

func (f fakeSubjects) Create(ctx context.Context, subject models.Subject) (models.Subject, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectSubjectInsert {
		return subject, 0, nil
	}
	subject.ID = f.id()
	f.subjects[subject.ID] = subject
	f.writes++
	return subject, 1, nil
}

func (f fakeSubjects) Update(ctx context.Context, subject models.Subject) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subjects[subject.ID]; !ok || f.zeroSubjectUpdate {
		return 0, nil
	}
	f.subjects[subject.ID] = subject
	f.writes++
	return 1, nil
}

func (f fakeSubjects) SetDeleted(ctx context.Context, id int64, deleted bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subjects[id]
	if !ok {
		return 0, nil
	}
	s.Deleted = deleted
	f.subjects[id] = s
	f.writes++
	return 1, nil
}

type fakeEnrollments struct{ *memStore }

func (f fakeEnrollments) ListBySubject(ctx context.Context, subjectID int64) ([]models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	enrollments := []models.Enrollment{}
	for _, e := range f.enrollments {
		if e.SubjectID == subjectID {
			enrollments = append(enrollments, e)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].AttendingID < enrollments[j].AttendingID })
	return enrollments, nil
}

func (f fakeEnrollments) LockBySubject(ctx context.Context, subjectID int64) ([]models.Enrollment, error) {
	return f.ListBySubject(ctx, subjectID)
}

func (f fakeEnrollments) List(ctx context.Context, criteria models.SubjectCriteria) ([]models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	enrollments := []models.Enrollment{}
	for _, e := range f.enrollments {
		if criteria.CourseID != nil && e.CourseID != *criteria.CourseID {
			continue
		}
		enrollments = append(enrollments, e)
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].AttendingID < enrollments[j].AttendingID })
	return enrollments, nil
}

// Create mirrors the schema: subject_id is a foreign key, course_id is not.
func (f fakeEnrollments) Create(ctx context.Context, enrollment models.Enrollment) (models.Enrollment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subjects[enrollment.SubjectID]; !ok {
		return enrollment, 0, appErrors.Clone(appErrors.ErrConflict, "unknown subject")
	}
	enrollment.AttendingID = f.id()
	f.enrollments[enrollment.AttendingID] = enrollment
	f.writes++
	return enrollment, 1, nil
}

func (f fakeEnrollments) UpdateCourse(ctx context.Context, enrollment models.Enrollment) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.enrollments[enrollment.AttendingID]
	if !ok || stored.SubjectID != enrollment.SubjectID || f.zeroEnrollUpdate {
		return 0, nil
	}
	stored.CourseID = enrollment.CourseID
	f.enrollments[enrollment.AttendingID] = stored
	f.writes++
	return 1, nil
}

type fakeStatuses struct{ *memStore }

func (f fakeStatuses) ListByEnrollment(ctx context.Context, attendingID int64) ([]models.StatusEvent, error) {
	return f.timeline(attendingID), nil
}

func (f fakeStatuses) List(ctx context.Context, criteria models.SubjectCriteria) ([]models.StatusEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.enrollments))
	for id := range f.enrollments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	events := []models.StatusEvent{}
	for _, id := range ids {
		events = append(events, f.timelineLocked(id)...)
	}
	return events, nil
}

func (f fakeStatuses) FindByNaturalKey(ctx context.Context, attendingID int64, status models.Status, startDate time.Time) (*models.StatusEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hideNextKeyLookup {
		f.hideNextKeyLookup = false
		return nil, nil
	}
	for _, e := range f.events {
		if e.AttendingID == attendingID && e.Status == status && e.StartDate.Equal(startDate) {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (f fakeStatuses) Create(ctx context.Context, event models.StatusEvent) (models.StatusEvent, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.AttendingID == event.AttendingID && e.Status == event.Status && e.StartDate.Equal(event.StartDate) {
			return event, 0, appErrors.ErrDuplicateKey
		}
	}
	event.ID = f.id()
	f.events[event.ID] = event
	f.writes++
	return event, 1, nil
}

func (f fakeStatuses) Update(ctx context.Context, event models.StatusEvent) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.events[event.ID]
	if !ok || stored.AttendingID != event.AttendingID {
		return 0, nil
	}
	if event.EndDate != nil {
		stored.EndDate = event.EndDate
	}
	stored.ChangeReason = event.ChangeReason
	f.events[event.ID] = stored
	f.writes++
	return 1, nil
}

func (f fakeStatuses) CloseOpenInterval(ctx context.Context, attendingID, keepID int64, newStart time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClose {
		return 0, errors.New("connection reset")
	}
	var rows int64
	for id, e := range f.events {
		if e.AttendingID != attendingID || id == keepID || e.EndDate != nil || e.StartDate.After(newStart) {
			continue
		}
		end := newStart.AddDate(0, 0, -1)
		if end.Before(e.StartDate) {
			end = e.StartDate
		}
		e.EndDate = &end
		f.events[id] = e
		rows++
	}
	f.writes += int(rows)
	return rows, nil
}

type fakeCatalog map[int64]int

func (c fakeCatalog) Duration(ctx context.Context, courseID int64) (int, error) {
	return c[courseID], nil
}

type serviceFixture struct {
	store   *memStore
	tx      *fakeTx
	service *SubjectService
}

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newServiceFixture() *serviceFixture {
	store := newMemStore()
	tx := &fakeTx{store: store}
	svc := NewSubjectService(fakeSubjects{store}, fakeEnrollments{store}, fakeStatuses{store},
		fakeCatalog{2: 6, 3: 12}, tx, NewMetricsService(), nil, nil)
	svc.now = func() time.Time { return fixedNow }
	return &serviceFixture{store: store, tx: tx, service: svc}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleSubject() models.Subject {
	return models.Subject{
		FullName:          "Ann Lee",
		NamePronunciation: "an li",
		Nickname:          "Ann",
		Email:             "ann@example.com",
		Area:              "Tokyo",
		BirthDate:         day(1998, 4, 2),
		Gender:            "Female",
	}
}
