package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"dealdocs/internal/domain"
	"dealdocs/internal/logger"
	"dealdocs/internal/storage"
)

// memDB держит состояние всех фейковых хранилищ, чтобы каскады и указатели вели себя как в Postgres
type memDB struct {
	mu           sync.Mutex
	deals        map[uuid.UUID]domain.Deal
	participants map[uuid.UUID]map[string]domain.Participant
	documents    map[uuid.UUID]domain.Document
	versions     map[uuid.UUID]domain.Version
	tags         map[uuid.UUID]domain.Tag
	annotations  map[uuid.UUID]domain.Annotation
	links        map[uuid.UUID]domain.ShareLink
	writes       int

	failCommit error
}

func newMemDB() *memDB {
	return &memDB{
		deals:        make(map[uuid.UUID]domain.Deal),
		participants: make(map[uuid.UUID]map[string]domain.Participant),
		documents:    make(map[uuid.UUID]domain.Document),
		versions:     make(map[uuid.UUID]domain.Version),
		tags:         make(map[uuid.UUID]domain.Tag),
		annotations:  make(map[uuid.UUID]domain.Annotation),
		links:        make(map[uuid.UUID]domain.ShareLink),
	}
}

func (db *memDB) latestCommitted(documentID uuid.UUID) *domain.Version {
	var latest *domain.Version
	for _, v := range db.versions {
		if v.DocumentID != documentID || !v.IsCommitted() {
			continue
		}
		if latest == nil || v.VersionNumber > latest.VersionNumber {
			v := v
			latest = &v
		}
	}
	return latest
}

func (db *memDB) deleteVersionLocked(id uuid.UUID) {
	v, ok := db.versions[id]
	if !ok {
		return
	}
	delete(db.versions, id)
	if doc, ok := db.documents[v.DocumentID]; ok && doc.IsLatest(id) {
		doc.LatestVersionID = nil
		db.documents[doc.ID] = doc
	}
	for tid, t := range db.tags {
		if t.VersionID == id {
			delete(db.tags, tid)
		}
	}
	for aid, a := range db.annotations {
		if a.VersionID == id {
			delete(db.annotations, aid)
		}
	}
	for lid, l := range db.links {
		if l.VersionID == id {
			delete(db.links, lid)
		}
	}
}

type fakeDeals struct{ db *memDB }

func (f fakeDeals) GetByID(_ context.Context, id uuid.UUID) (*domain.Deal, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	d, ok := f.db.deals[id]
	if !ok {
		return nil, domain.NotFound("GetDeal", "deal")
	}
	return &d, nil
}

func (f fakeDeals) GetParticipant(_ context.Context, dealID uuid.UUID, userID string) (*domain.Participant, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.participants[dealID][userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type fakeDocuments struct{ db *memDB }

func (f fakeDocuments) Create(_ context.Context, doc *domain.Document) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.writes++
	now := time.Now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	f.db.documents[doc.ID] = *doc
	return nil
}

func (f fakeDocuments) GetByID(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	d, ok := f.db.documents[id]
	if !ok {
		return nil, domain.NotFound("GetDocument", "document")
	}
	return &d, nil
}

func (f fakeDocuments) ListByDeal(_ context.Context, dealID uuid.UUID) ([]domain.Document, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var docs []domain.Document
	for _, d := range f.db.documents {
		if d.DealID == dealID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func (f fakeDocuments) ReserveVersionNumber(_ context.Context, documentID uuid.UUID) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	d, ok := f.db.documents[documentID]
	if !ok {
		return 0, domain.NotFound("ReserveVersionNumber", "document")
	}
	d.VersionSeq++
	f.db.documents[documentID] = d
	return d.VersionSeq, nil
}

func (f fakeDocuments) SetLatestVersion(_ context.Context, documentID uuid.UUID, versionID *uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	d, ok := f.db.documents[documentID]
	if !ok {
		return domain.NotFound("SetLatestVersion", "document")
	}
	f.db.writes++
	d.LatestVersionID = versionID
	f.db.documents[documentID] = d
	return nil
}

func (f fakeDocuments) Delete(_ context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.documents[id]; !ok {
		return domain.NotFound("DeleteDocument", "document")
	}
	f.db.writes++
	for vid, v := range f.db.versions {
		if v.DocumentID == id {
			f.db.deleteVersionLocked(vid)
		}
	}
	delete(f.db.documents, id)
	return nil
}

type fakeVersions struct{ db *memDB }

func (f fakeVersions) Create(_ context.Context, v *domain.Version) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.versions {
		if existing.DocumentID == v.DocumentID && existing.VersionNumber == v.VersionNumber {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	f.db.writes++
	v.Status = domain.VersionStatusPending
	v.UploadedAt = time.Now()
	f.db.versions[v.ID] = *v
	return nil
}

func (f fakeVersions) GetByID(_ context.Context, id uuid.UUID) (*domain.Version, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	v, ok := f.db.versions[id]
	if !ok {
		return nil, domain.NotFound("GetVersion", "version")
	}
	return &v, nil
}

func (f fakeVersions) list(documentID uuid.UUID, committedOnly bool) []domain.Version {
	var out []domain.Version
	for _, v := range f.db.versions {
		if v.DocumentID == documentID && (!committedOnly || v.IsCommitted()) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out
}

func (f fakeVersions) ListByDocument(_ context.Context, documentID uuid.UUID) ([]domain.Version, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.list(documentID, true), nil
}

func (f fakeVersions) ListAllByDocument(_ context.Context, documentID uuid.UUID) ([]domain.Version, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.list(documentID, false), nil
}

func (f fakeVersions) LatestCommitted(_ context.Context, documentID uuid.UUID) (*domain.Version, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.latestCommitted(documentID), nil
}

func (f fakeVersions) Commit(_ context.Context, versionID, documentID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failCommit != nil {
		return f.db.failCommit
	}
	v, ok := f.db.versions[versionID]
	if !ok || v.IsCommitted() {
		return domain.NotFound("CommitVersion", "pending version")
	}
	f.db.writes++
	v.Status = domain.VersionStatusCommitted
	f.db.versions[versionID] = v

	doc := f.db.documents[documentID]
	latest := f.db.latestCommitted(documentID)
	doc.LatestVersionID = &latest.ID
	f.db.documents[documentID] = doc
	return nil
}

func (f fakeVersions) Delete(_ context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.versions[id]; !ok {
		return domain.NotFound("DeleteVersion", "version")
	}
	f.db.writes++
	f.db.deleteVersionLocked(id)
	return nil
}

func (f fakeVersions) DeletePending(_ context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	v, ok := f.db.versions[id]
	if !ok || v.IsCommitted() {
		return domain.NotFound("DeletePendingVersion", "pending version")
	}
	f.db.deleteVersionLocked(id)
	return nil
}

func (f fakeVersions) ListStalePending(_ context.Context, before time.Time, limit int) ([]domain.Version, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []domain.Version
	for _, v := range f.db.versions {
		if !v.IsCommitted() && v.UploadedAt.Before(before) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeTags struct{ db *memDB }

func (f fakeTags) CreateTag(_ context.Context, tag *domain.Tag) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	tag.CreatedAt = time.Now()
	f.db.tags[tag.ID] = *tag
	return nil
}

func (f fakeTags) GetTag(_ context.Context, id uuid.UUID) (*domain.Tag, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t, ok := f.db.tags[id]
	if !ok {
		return nil, domain.NotFound("GetTag", "tag")
	}
	return &t, nil
}

func (f fakeTags) DeleteTag(_ context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.tags[id]; !ok {
		return domain.NotFound("DeleteTag", "tag")
	}
	delete(f.db.tags, id)
	return nil
}

func (f fakeTags) ListTags(_ context.Context, versionIDs []uuid.UUID) ([]domain.Tag, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []domain.Tag
	for _, t := range f.db.tags {
		for _, id := range versionIDs {
			if t.VersionID == id {
				out = append(out, t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeTags) CreateAnnotation(_ context.Context, a *domain.Annotation) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a.CreatedAt = time.Now()
	f.db.annotations[a.ID] = *a
	return nil
}

func (f fakeTags) ListAnnotations(_ context.Context, versionIDs []uuid.UUID) ([]domain.Annotation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []domain.Annotation
	for _, a := range f.db.annotations {
		for _, id := range versionIDs {
			if a.VersionID == id {
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Content < out[j].Content })
	return out, nil
}

type fakeLinks struct{ db *memDB }

func (f fakeLinks) Create(_ context.Context, link *domain.ShareLink) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	link.CreatedAt = time.Now()
	f.db.links[link.ID] = *link
	return nil
}

func (f fakeLinks) GetByID(_ context.Context, id uuid.UUID) (*domain.ShareLink, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	l, ok := f.db.links[id]
	if !ok {
		return nil, domain.NotFound("GetShareLink", "share link")
	}
	return &l, nil
}

func (f fakeLinks) GetByToken(_ context.Context, token string) (*domain.ShareLink, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, l := range f.db.links {
		if l.Token == token {
			return &l, nil
		}
	}
	return nil, domain.NotFound("GetShareLinkByToken", "share link")
}

func (f fakeLinks) ListByVersion(_ context.Context, versionID uuid.UUID) ([]domain.ShareLink, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []domain.ShareLink
	for _, l := range f.db.links {
		if l.VersionID == versionID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f fakeLinks) Revoke(_ context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	l, ok := f.db.links[id]
	if !ok {
		return domain.NotFound("RevokeShareLink", "share link")
	}
	if !l.Revoked {
		now := time.Now()
		l.Revoked = true
		l.RevokedAt = &now
	}
	f.db.links[id] = l
	return nil
}

// fakeStorage хранит объекты в памяти; ошибки операций настраиваются тестом
type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	uploadErr error
	copyErr   error
	deleteErr error
}

var _ storage.Storage = (*fakeStorage)(nil)

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *fakeStorage) Upload(_ context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.objects[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	return "mem://" + key, nil
}

func (s *fakeStorage) Get(_ context.Context, key string) (storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &memObject{Reader: bytes.NewReader(data), size: int64(len(data)), contentType: s.types[key]}, nil
}

func (s *fakeStorage) Copy(_ context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.copyErr != nil {
		return s.copyErr
	}
	data, ok := s.objects[srcKey]
	if !ok {
		return storage.ErrObjectNotFound
	}
	s.objects[dstKey] = append([]byte(nil), data...)
	s.types[dstKey] = s.types[srcKey]
	return nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	delete(s.types, key)
	return nil
}

func (s *fakeStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://storage.test/" + key + "?ttl=" + ttl.String(), nil
}

func (s *fakeStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *fakeStorage) content(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

func (s *fakeStorage) keysWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

type memObject struct {
	*bytes.Reader
	size        int64
	contentType string
}

func (o *memObject) Close() error { return nil }

func (o *memObject) ContentLength() int64 { return o.size }

func (o *memObject) ContentType() string { return o.contentType }

const (
	userAdmin    = "user-admin"
	userSeller   = "user-seller"
	userBuyer    = "user-buyer"
	userLawyer   = "user-lawyer"
	userOutsider = "user-outsider"
)

type testEnv struct {
	db          *memDB
	storage     *fakeStorage
	dealID      uuid.UUID
	permissions *PermissionService
	versions    *VersionService
	documents   *DocumentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newMemDB()
	dealID := uuid.New()
	db.deals[dealID] = domain.Deal{ID: dealID, Title: "Warehouse sale", Status: domain.DealStatusActive}
	db.participants[dealID] = map[string]domain.Participant{
		userAdmin:  {DealID: dealID, UserID: userAdmin, Role: domain.RoleAdmin},
		userSeller: {DealID: dealID, UserID: userSeller, Role: domain.RoleSeller},
		userBuyer:  {DealID: dealID, UserID: userBuyer, Role: domain.RoleBuyer},
		userLawyer: {DealID: dealID, UserID: userLawyer, Role: domain.RoleLawyer},
	}

	store := newFakeStorage()
	log := logger.Discard()
	permissions := NewPermissionService(fakeDeals{db})

	return &testEnv{
		db:          db,
		storage:     store,
		dealID:      dealID,
		permissions: permissions,
		versions:    NewVersionService(fakeDocuments{db}, fakeVersions{db}, store, permissions, 1024, log),
		documents:   NewDocumentService(fakeDocuments{db}, fakeVersions{db}, fakeTags{db}, store, permissions, 15*time.Minute, log),
	}
}

func (e *testEnv) setDealStatus(status domain.DealStatus) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	d := e.db.deals[e.dealID]
	d.Status = status
	e.db.deals[e.dealID] = d
}

func (e *testEnv) document(id uuid.UUID) domain.Document {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.documents[id]
}

func (e *testEnv) version(id uuid.UUID) (domain.Version, bool) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	v, ok := e.db.versions[id]
	return v, ok
}

func (e *testEnv) versionCount() int {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return len(e.db.versions)
}

func (e *testEnv) writeCount() int {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.writes
}

func upload(content string) domain.DocumentUpload {
	return domain.DocumentUpload{FileName: "nda.pdf", MIMEType: "application/pdf", Data: []byte(content)}
}

// seedDocument создает документ с n версиями, содержимое версии i - "v<i>"
func (e *testEnv) seedDocument(t *testing.T, n int) (*domain.Document, []domain.Version) {
	t.Helper()
	ctx := context.Background()

	doc, err := e.versions.CreateDocument(ctx, userSeller, e.dealID, "NDA", "legal", upload("v1"))
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	versions := []domain.Version{doc.Versions[0]}
	for i := 2; i <= n; i++ {
		v, err := e.versions.AddVersion(ctx, userSeller, doc.ID, upload("v"+string(rune('0'+i))))
		if err != nil {
			t.Fatalf("add version %d: %v", i, err)
		}
		versions = append(versions, *v)
	}
	return doc, versions
}

func loggerForTest() *slog.Logger {
	return logger.Discard()
}
