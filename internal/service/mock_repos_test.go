package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"ortho-flow/backend/internal/model"
	"ortho-flow/backend/internal/repository"
	pkgerrors "ortho-flow/backend/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("user-%d", m.seq)
	}
	if user.Version == 0 {
		user.Version = 1
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context, role, keyword string, offset, limit int) ([]model.User, int64, error) {
	var result []model.User
	for _, u := range m.users {
		if role != "" && u.Role != role {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	stored, ok := m.users[user.UserID]
	if !ok || stored.Version != user.Version {
		return pkgerrors.ErrOptimisticLock
	}
	user.Version++
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

// ── Mock PatientRepository ──

type mockPatientRepo struct {
	patients map[string]*model.Patient
	seq      int
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[string]*model.Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, patient *model.Patient) error {
	if patient.PatientID == "" {
		m.seq++
		patient.PatientID = fmt.Sprintf("patient-%d", m.seq)
	}
	if patient.Version == 0 {
		patient.Version = 1
	}
	cp := *patient
	m.patients[patient.PatientID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id string) (*model.Patient, error) {
	if p, ok := m.patients[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPatientRepo) List(_ context.Context, keyword string, offset, limit int) ([]model.Patient, int64, error) {
	var result []model.Patient
	for _, p := range m.patients {
		if keyword != "" && !strings.Contains(p.Name, keyword) && !strings.Contains(p.Phone, keyword) {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockPatientRepo) Update(_ context.Context, patient *model.Patient) error {
	stored, ok := m.patients[patient.PatientID]
	if !ok || stored.Version != patient.Version {
		return pkgerrors.ErrOptimisticLock
	}
	patient.Version++
	cp := *patient
	m.patients[patient.PatientID] = &cp
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.patients, id)
	return nil
}

// ── Mock WorkRepository ──

type mockWorkRepo struct {
	works map[string]*model.Work
	sets  *mockAlignerSetRepo // 模拟 Preload("Sets")
	seq   int
}

func newMockWorkRepo(sets *mockAlignerSetRepo) *mockWorkRepo {
	return &mockWorkRepo{works: make(map[string]*model.Work), sets: sets}
}

func (m *mockWorkRepo) Create(_ context.Context, work *model.Work) error {
	if work.WorkID == "" {
		m.seq++
		work.WorkID = fmt.Sprintf("work-%d", m.seq)
	}
	if work.Version == 0 {
		work.Version = 1
	}
	cp := *work
	m.works[work.WorkID] = &cp
	return nil
}

func (m *mockWorkRepo) GetByID(ctx context.Context, id string) (*model.Work, error) {
	w, ok := m.works[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *w
	if m.sets != nil {
		cp.Sets, _ = m.sets.ListByWork(ctx, id)
	}
	return &cp, nil
}

func (m *mockWorkRepo) GetActiveByPatient(_ context.Context, patientID string) (*model.Work, error) {
	for _, w := range m.works {
		if w.PatientID == patientID && w.Status == model.WorkStatusActive {
			cp := *w
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkRepo) List(_ context.Context, patientID, status string, offset, limit int) ([]model.Work, int64, error) {
	var result []model.Work
	for _, w := range m.works {
		if patientID != "" && w.PatientID != patientID {
			continue
		}
		if status != "" && w.Status != status {
			continue
		}
		result = append(result, *w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WorkID < result[j].WorkID })
	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockWorkRepo) Update(_ context.Context, work *model.Work) error {
	stored, ok := m.works[work.WorkID]
	if !ok || stored.Version != work.Version {
		return pkgerrors.ErrOptimisticLock
	}
	work.Version++
	cp := *work
	cp.Sets = nil
	m.works[work.WorkID] = &cp
	return nil
}

func (m *mockWorkRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.works, id)
	return nil
}

// ── Mock AlignerSetRepository ──

type mockAlignerSetRepo struct {
	sets    map[string]*model.AlignerSet
	batches *mockAlignerBatchRepo // 模拟 Preload("Batches")
	users   *mockUserRepo         // 模拟 Preload("Doctor")
	seq     int
}

func newMockAlignerSetRepo(batches *mockAlignerBatchRepo, users *mockUserRepo) *mockAlignerSetRepo {
	return &mockAlignerSetRepo{
		sets:    make(map[string]*model.AlignerSet),
		batches: batches,
		users:   users,
	}
}

func (m *mockAlignerSetRepo) Create(_ context.Context, set *model.AlignerSet) error {
	if set.SetID == "" {
		m.seq++
		set.SetID = fmt.Sprintf("set-%d", m.seq)
	}
	if set.Version == 0 {
		set.Version = 1
	}
	set.CreatedAt = time.Now()
	cp := *set
	m.sets[set.SetID] = &cp
	return nil
}

func (m *mockAlignerSetRepo) GetByID(ctx context.Context, id string) (*model.AlignerSet, error) {
	s, ok := m.sets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	if m.batches != nil {
		cp.Batches, _ = m.batches.ListBySet(ctx, id)
	}
	if m.users != nil {
		if d, err := m.users.GetByID(ctx, s.DoctorID); err == nil {
			cp.Doctor = d
		}
	}
	return &cp, nil
}

func (m *mockAlignerSetRepo) ListByWork(ctx context.Context, workID string) ([]model.AlignerSet, error) {
	var result []model.AlignerSet
	for _, s := range m.sets {
		if s.WorkID != workID {
			continue
		}
		cp := *s
		if m.batches != nil {
			cp.Batches, _ = m.batches.ListBySet(ctx, s.SetID)
		}
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (m *mockAlignerSetRepo) MaxSequenceByWork(_ context.Context, workID string) (int, error) {
	maxSeq := 0
	for _, s := range m.sets {
		if s.WorkID == workID && s.Sequence > maxSeq {
			maxSeq = s.Sequence
		}
	}
	return maxSeq, nil
}

func (m *mockAlignerSetRepo) Update(_ context.Context, set *model.AlignerSet) error {
	stored, ok := m.sets[set.SetID]
	if !ok || stored.Version != set.Version {
		return pkgerrors.ErrOptimisticLock
	}
	set.Version++
	cp := *set
	cp.Batches = nil
	cp.Doctor = nil
	m.sets[set.SetID] = &cp
	return nil
}

func (m *mockAlignerSetRepo) DeactivateByWork(_ context.Context, workID string) error {
	for _, s := range m.sets {
		if s.WorkID == workID && s.IsActive {
			s.IsActive = false
			s.Version++
		}
	}
	return nil
}

func (m *mockAlignerSetRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.sets, id)
	return nil
}

// ── Mock AlignerBatchRepository ──

type mockAlignerBatchRepo struct {
	batches map[string]*model.AlignerBatch
	seq     int
}

func newMockAlignerBatchRepo() *mockAlignerBatchRepo {
	return &mockAlignerBatchRepo{batches: make(map[string]*model.AlignerBatch)}
}

func (m *mockAlignerBatchRepo) Create(_ context.Context, batch *model.AlignerBatch) error {
	if batch.BatchID == "" {
		m.seq++
		batch.BatchID = fmt.Sprintf("batch-%d", m.seq)
	}
	if batch.Version == 0 {
		batch.Version = 1
	}
	batch.CreatedAt = time.Now()
	cp := *batch
	m.batches[batch.BatchID] = &cp
	return nil
}

func (m *mockAlignerBatchRepo) GetByID(_ context.Context, id string) (*model.AlignerBatch, error) {
	if b, ok := m.batches[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAlignerBatchRepo) ListBySet(_ context.Context, setID string) ([]model.AlignerBatch, error) {
	var result []model.AlignerBatch
	for _, b := range m.batches {
		if b.SetID == setID {
			result = append(result, *b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (m *mockAlignerBatchRepo) GetActiveBySet(_ context.Context, setID string) (*model.AlignerBatch, error) {
	for _, b := range m.batches {
		if b.SetID == setID && b.IsActive {
			cp := *b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAlignerBatchRepo) CountBySet(_ context.Context, setID string) (int64, error) {
	var n int64
	for _, b := range m.batches {
		if b.SetID == setID {
			n++
		}
	}
	return n, nil
}

func (m *mockAlignerBatchRepo) Update(_ context.Context, batch *model.AlignerBatch) error {
	stored, ok := m.batches[batch.BatchID]
	if !ok || stored.Version != batch.Version {
		return pkgerrors.ErrOptimisticLock
	}
	batch.Version++
	cp := *batch
	cp.Set = nil
	m.batches[batch.BatchID] = &cp
	return nil
}

func (m *mockAlignerBatchRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.batches, id)
	return nil
}

// ── Mock NoteRepository ──

type mockNoteRepo struct {
	notes []*model.TreatmentNote
	users *mockUserRepo // 模拟 Preload("Author")
	seq   int
}

func newMockNoteRepo(users *mockUserRepo) *mockNoteRepo {
	return &mockNoteRepo{users: users}
}

func (m *mockNoteRepo) Create(_ context.Context, note *model.TreatmentNote) error {
	if note.NoteID == "" {
		m.seq++
		note.NoteID = fmt.Sprintf("note-%d", m.seq)
	}
	note.CreatedAt = time.Now()
	cp := *note
	m.notes = append(m.notes, &cp)
	return nil
}

func (m *mockNoteRepo) ListByWork(ctx context.Context, workID string, offset, limit int) ([]model.TreatmentNote, int64, error) {
	var result []model.TreatmentNote
	for i := len(m.notes) - 1; i >= 0; i-- { // created_at DESC
		n := m.notes[i]
		if n.WorkID != workID {
			continue
		}
		cp := *n
		if m.users != nil {
			if a, err := m.users.GetByID(ctx, n.AuthorID); err == nil {
				cp.Author = a
			}
		}
		result = append(result, cp)
	}
	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockNoteRepo) MarkReadByWork(_ context.Context, workID, side string) error {
	for _, n := range m.notes {
		if n.WorkID != workID {
			continue
		}
		if side == "doctor" {
			n.ReadByDoctor = true
		} else {
			n.ReadByStaff = true
		}
	}
	return nil
}

func (m *mockNoteRepo) CountUnread(_ context.Context, workID string) (int64, int64, error) {
	var doctor, staff int64
	for _, n := range m.notes {
		if n.WorkID != workID {
			continue
		}
		if !n.ReadByDoctor {
			doctor++
		}
		if !n.ReadByStaff {
			staff++
		}
	}
	return doctor, staff, nil
}

// ── 测试聚合 ──

type testRepos struct {
	user    *mockUserRepo
	patient *mockPatientRepo
	work    *mockWorkRepo
	set     *mockAlignerSetRepo
	batch   *mockAlignerBatchRepo
	note    *mockNoteRepo
}

func newTestRepos() *testRepos {
	users := newMockUserRepo()
	batches := newMockAlignerBatchRepo()
	sets := newMockAlignerSetRepo(batches, users)
	return &testRepos{
		user:    users,
		patient: newMockPatientRepo(),
		work:    newMockWorkRepo(sets),
		set:     sets,
		batch:   batches,
		note:    newMockNoteRepo(users),
	}
}

// toRepository 组装聚合；Tx 为直通实现（内存 mock 无真实事务）
func (r *testRepos) toRepository() *repository.Repository {
	repo := &repository.Repository{
		User:         r.user,
		Patient:      r.patient,
		Work:         r.work,
		AlignerSet:   r.set,
		AlignerBatch: r.batch,
		Note:         r.note,
	}
	repo.Tx = func(ctx context.Context, fn func(*repository.Repository) error) error {
		return fn(repo)
	}
	return repo
}

// [自证通过] internal/service/mock_repos_test.go
