package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-academics/internal/models"
	"github.com/noah-isme/sis-academics/internal/repository"
	appErrors "github.com/noah-isme/sis-academics/pkg/errors"
)

// fakeSchool is an in-memory tenant. WithinTx serialises transactions and restores the
// pre-transaction state when fn fails, matching a database rollback.
type fakeSchool struct {
	txMu sync.Mutex
	mu   sync.Mutex

	years       map[string]models.AcademicYear
	terms       map[string]models.Term
	scales      map[string]models.GradeScale
	levels      map[string]models.GradeLevel
	classes     map[string]models.ClassDetail
	students    map[string]models.Student
	enrollments map[string]models.Enrollment
	seq         int

	// failCreate makes Create fail for the given student id.
	failCreate map[string]error
	// failSetCurrentClass makes SetCurrentClass fail for the given student id.
	failSetCurrentClass map[string]error
	// failSync makes SyncCurrentClasses fail.
	failSync error
}

func newFakeSchool() *fakeSchool {
	return &fakeSchool{
		years:               map[string]models.AcademicYear{},
		terms:               map[string]models.Term{},
		scales:              map[string]models.GradeScale{},
		levels:              map[string]models.GradeLevel{},
		classes:             map[string]models.ClassDetail{},
		students:            map[string]models.Student{},
		enrollments:         map[string]models.Enrollment{},
		failCreate:          map[string]error{},
		failSetCurrentClass: map[string]error{},
	}
}

type schoolState struct {
	years       map[string]models.AcademicYear
	terms       map[string]models.Term
	scales      map[string]models.GradeScale
	students    map[string]models.Student
	enrollments map[string]models.Enrollment
	seq         int
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (f *fakeSchool) snapshot() schoolState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return schoolState{
		years:       copyMap(f.years),
		terms:       copyMap(f.terms),
		scales:      copyMap(f.scales),
		students:    copyMap(f.students),
		enrollments: copyMap(f.enrollments),
		seq:         f.seq,
	}
}

func (f *fakeSchool) restore(s schoolState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.years, f.terms, f.scales = s.years, s.terms, s.scales
	f.students, f.enrollments, f.seq = s.students, s.enrollments, s.seq
}

func (f *fakeSchool) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	state := f.snapshot()
	if err := fn(nil); err != nil {
		f.restore(state)
		return err
	}
	return nil
}

// seeding helpers

func (f *fakeSchool) addYear(id, name string, current bool) models.AcademicYear {
	y := models.AcademicYear{ID: id, Name: name, IsCurrent: current, IsActive: true}
	f.years[id] = y
	return y
}

func (f *fakeSchool) addLevel(id, name string, order int, final bool) models.GradeLevel {
	l := models.GradeLevel{ID: id, Name: name, Code: id, Order: order, IsFinalLevel: final, IsActive: true, LevelType: models.LevelTypeSHS}
	f.levels[id] = l
	return l
}

func (f *fakeSchool) addClass(id, levelID, section string, programmeID *string) models.ClassDetail {
	l := f.levels[levelID]
	c := models.ClassDetail{
		Class:           models.Class{ID: id, GradeLevelID: levelID, Section: section, ProgrammeID: programmeID, Capacity: 40, IsActive: true},
		GradeLevelName:  l.Name,
		GradeLevelOrder: l.Order,
		LevelType:       l.LevelType,
		IsFinalLevel:    l.IsFinalLevel,
	}
	if programmeID != nil {
		code := *programmeID
		c.ProgrammeCode = &code
	}
	f.classes[id] = c
	return c
}

func (f *fakeSchool) addStudent(id string, status models.StudentStatus) models.Student {
	s := models.Student{ID: id, StudentNumber: "S-" + id, FirstName: "First" + id, LastName: "Last", Status: status, IsActive: status == models.StudentStatusActive || status == models.StudentStatusSuspended}
	f.students[id] = s
	return s
}

func (f *fakeSchool) enroll(studentID, classID, yearID string) models.Enrollment {
	f.seq++
	e := models.Enrollment{
		ID:             fmt.Sprintf("enr-%03d", f.seq),
		StudentID:      studentID,
		ClassID:        classID,
		AcademicYearID: yearID,
		IsActive:       true,
		EnrolledAt:     time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Minute),
	}
	f.enrollments[e.ID] = e
	if y := f.years[yearID]; y.IsCurrent {
		s := f.students[studentID]
		cid := classID
		s.CurrentClassID = &cid
		f.students[studentID] = s
	}
	return e
}

func (f *fakeSchool) activeEnrollments(studentID string) []models.Enrollment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Enrollment
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.IsActive {
			out = append(out, e)
		}
	}
	sortEnrollments(out)
	return out
}

func (f *fakeSchool) student(id string) models.Student {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.students[id]
}

func sortEnrollments(rows []models.Enrollment) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
}

func (f *fakeSchool) detail(e models.Enrollment) models.EnrollmentDetail {
	s := f.students[e.StudentID]
	c := f.classes[e.ClassID]
	return models.EnrollmentDetail{
		Enrollment:       e,
		StudentNumber:    s.StudentNumber,
		StudentFirstName: s.FirstName,
		StudentLastName:  s.LastName,
		StudentStatus:    s.Status,
		GradeLevelName:   c.GradeLevelName,
		Section:          c.Section,
		ProgrammeCode:    c.ProgrammeCode,
		AcademicYearName: f.years[e.AcademicYearID].Name,
	}
}

// store views

type fakeYears struct{ *fakeSchool }

func (f fakeYears) List(ctx context.Context) ([]models.AcademicYear, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AcademicYear, 0, len(f.years))
	for _, y := range f.years {
		out = append(out, y)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func (f fakeYears) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AcademicYear, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	y, ok := f.years[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &y, nil
}

func (f fakeYears) FindCurrent(ctx context.Context) (*models.AcademicYear, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, y := range f.years {
		if y.IsCurrent {
			y := y
			return &y, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeYears) SetCurrent(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.years[id]; !ok {
		return sql.ErrNoRows
	}
	for k, y := range f.years {
		y.IsCurrent = k == id
		f.years[k] = y
	}
	return nil
}

type fakeTerms struct{ *fakeSchool }

func (f fakeTerms) ListByYear(ctx context.Context, yearID string) ([]models.Term, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Term
	for _, t := range f.terms {
		if t.AcademicYearID == yearID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TermNumber < out[j].TermNumber })
	return out, nil
}

func (f fakeTerms) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Term, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (f fakeTerms) FindCurrent(ctx context.Context, yearID string) (*models.Term, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.terms {
		if t.AcademicYearID == yearID && t.IsCurrent {
			t := t
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeTerms) SetCurrent(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.terms[id]
	if !ok {
		return sql.ErrNoRows
	}
	for k, t := range f.terms {
		if t.AcademicYearID == target.AcademicYearID {
			t.IsCurrent = k == id
			f.terms[k] = t
		}
	}
	return nil
}

type fakeScales struct{ *fakeSchool }

func (f fakeScales) List(ctx context.Context) ([]models.GradeScale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GradeScale
	for _, s := range f.scales {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeScales) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.GradeScale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scales[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeScales) FindDefault(ctx context.Context, levelType models.LevelType) (*models.GradeScale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.scales {
		if s.LevelType == levelType && s.IsDefault {
			s := s
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeScales) SetDefault(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.scales[id]
	if !ok {
		return sql.ErrNoRows
	}
	for k, s := range f.scales {
		if s.LevelType == target.LevelType {
			s.IsDefault = k == id
			f.scales[k] = s
		}
	}
	return nil
}

type fakeLevels struct{ *fakeSchool }

func (f fakeLevels) FindNext(ctx context.Context, order int) (*models.GradeLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.levels {
		if l.IsActive && l.Order == order+1 {
			l := l
			return &l, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeClasses struct{ *fakeSchool }

func (f fakeClasses) FindDetailByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ClassDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f fakeClasses) ListActiveByGradeLevel(ctx context.Context, levelID string) ([]models.ClassDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ClassDetail
	for _, c := range f.classes {
		if c.GradeLevelID == levelID && c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeStudents struct{ *fakeSchool }

func (f fakeStudents) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeStudents) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	return f.FindByID(ctx, exec, id)
}

func (f fakeStudents) MarkGraduated(ctx context.Context, exec sqlx.ExtContext, id, yearID string, on time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Status = models.StudentStatusGraduated
	s.IsActive = false
	s.CurrentClassID = nil
	s.GraduationDate = &on
	s.GraduationYearID = &yearID
	f.students[id] = s
	return nil
}

func (f fakeStudents) SetCurrentClass(ctx context.Context, exec sqlx.ExtContext, id string, classID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failSetCurrentClass[id]; err != nil {
		return err
	}
	s, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.CurrentClassID = classID
	f.students[id] = s
	return nil
}

func (f fakeStudents) ClearCurrentClassIf(ctx context.Context, exec sqlx.ExtContext, id, classID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.students[id]
	if s.CurrentClassID != nil && *s.CurrentClassID == classID {
		s.CurrentClassID = nil
		f.students[id] = s
	}
	return nil
}

func (f fakeStudents) SyncCurrentClasses(ctx context.Context, exec sqlx.ExtContext, yearID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSync != nil {
		return 0, f.failSync
	}
	classes := map[string]string{}
	for _, e := range f.enrollments {
		if e.IsActive && e.AcademicYearID == yearID {
			classes[e.StudentID] = e.ClassID
		}
	}
	var changed int64
	for id, s := range f.students {
		classID, ok := classes[id]
		switch {
		case ok && (s.CurrentClassID == nil || *s.CurrentClassID != classID):
			s.CurrentClassID = &classID
		case !ok && s.CurrentClassID != nil:
			s.CurrentClassID = nil
		default:
			continue
		}
		f.students[id] = s
		changed++
	}
	return changed, nil
}

func (f fakeStudents) UpdateLifecycle(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	f.students[student.ID] = *student
	return nil
}

type fakeEnrollments struct{ *fakeSchool }

func (f fakeEnrollments) Create(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCreate[e.StudentID]; err != nil {
		return err
	}
	if e.IsActive {
		for _, existing := range f.enrollments {
			if existing.IsActive && existing.StudentID == e.StudentID && existing.AcademicYearID == e.AcademicYearID {
				return repository.ErrDuplicate
			}
		}
	}
	f.seq++
	e.ID = fmt.Sprintf("enr-%03d", f.seq)
	e.EnrolledAt = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Minute)
	f.enrollments[e.ID] = *e
	return nil
}

func (f fakeEnrollments) Deactivate(ctx context.Context, exec sqlx.ExtContext, id, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok || !e.IsActive {
		return sql.ErrNoRows
	}
	e.IsActive = false
	if note != "" {
		if e.Notes != "" {
			e.Notes += "\n"
		}
		e.Notes += note
	}
	f.enrollments[id] = e
	return nil
}

func (f fakeEnrollments) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (f fakeEnrollments) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := f.detail(e)
	return &d, nil
}

func (f fakeEnrollments) FindActiveByStudentYear(ctx context.Context, exec sqlx.ExtContext, studentID, yearID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.enrollments {
		if e.IsActive && e.StudentID == studentID && e.AcademicYearID == yearID {
			e := e
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeEnrollments) FindActiveInClass(ctx context.Context, exec sqlx.ExtContext, studentID, classID, yearID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.enrollments {
		if e.IsActive && e.StudentID == studentID && e.ClassID == classID && e.AcademicYearID == yearID {
			e := e
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeEnrollments) ExistsForStudentYear(ctx context.Context, exec sqlx.ExtContext, studentID, yearID, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.AcademicYearID == yearID && e.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeEnrollments) ActiveStudentIDsInYear(ctx context.Context, yearID string, studentIDs, excludeIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range studentIDs {
		wanted[id] = true
	}
	excluded := map[string]bool{}
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	out := map[string]bool{}
	for _, e := range f.enrollments {
		if e.IsActive && e.AcademicYearID == yearID && wanted[e.StudentID] && !excluded[e.ID] {
			out[e.StudentID] = true
		}
	}
	return out, nil
}

func (f fakeEnrollments) ListActiveByClassYear(ctx context.Context, classID, yearID string) ([]models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Enrollment
	for _, e := range f.enrollments {
		if e.IsActive && e.ClassID == classID && e.AcademicYearID == yearID {
			rows = append(rows, e)
		}
	}
	sortEnrollments(rows)
	out := make([]models.EnrollmentDetail, 0, len(rows))
	for _, e := range rows {
		out = append(out, f.detail(e))
	}
	return out, nil
}

func (f fakeEnrollments) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Enrollment
	for _, e := range f.enrollments {
		if e.StudentID == studentID {
			rows = append(rows, e)
		}
	}
	sortEnrollments(rows)
	out := make([]models.EnrollmentDetail, 0, len(rows))
	for _, e := range rows {
		out = append(out, f.detail(e))
	}
	return out, nil
}

func (f fakeEnrollments) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Enrollment
	for _, e := range f.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.ClassID != "" && e.ClassID != filter.ClassID {
			continue
		}
		if filter.AcademicYearID != "" && e.AcademicYearID != filter.AcademicYearID {
			continue
		}
		if filter.ActiveOnly && !e.IsActive {
			continue
		}
		rows = append(rows, e)
	}
	sortEnrollments(rows)
	out := make([]models.EnrollmentDetail, 0, len(rows))
	for _, e := range rows {
		out = append(out, f.detail(e))
	}
	return out, len(out), nil
}

// fakeAudit collects entries synchronously.
type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *fakeAudit) Record(ctx context.Context, entry models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *fakeAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func (a *fakeAudit) details(i int) map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out map[string]interface{}
	_ = json.Unmarshal(a.entries[i].Details, &out)
	return out
}

// memoryCache is a CacheRepository backed by a map.
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
	gets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := pattern
	if n := len(prefix); n > 0 && prefix[n-1] == '*' {
		prefix = prefix[:n-1]
	}
	for k := range c.items {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.items, k)
		}
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}
