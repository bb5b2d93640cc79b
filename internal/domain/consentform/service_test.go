package consentform

import (
	"bytes"
	"context"
	"sort"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preop/preop/internal/platform/apperr"
)

type mockRepo struct {
	forms map[uuid.UUID]*ConsentForm
}

func newMockRepo() *mockRepo {
	return &mockRepo{forms: make(map[uuid.UUID]*ConsentForm)}
}

func (m *mockRepo) Insert(_ context.Context, f *ConsentForm) (bool, error) {
	for _, existing := range m.forms {
		if existing.Type == f.Type && existing.FileName == f.FileName {
			return false, nil
		}
	}
	stored := *f
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.Content = append([]byte(nil), f.Content...)
	m.forms[stored.ID] = &stored
	f.ID, f.CreatedAt = stored.ID, stored.CreatedAt
	return true, nil
}

func (m *mockRepo) GetByName(_ context.Context, t Type, fileName string) (*ConsentForm, error) {
	for _, f := range m.forms {
		if f.Type == t && f.FileName == fileName {
			out := *f
			return &out, nil
		}
	}
	return nil, apperr.NotFound("consent form not found")
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*ConsentForm, error) {
	f, ok := m.forms[id]
	if !ok {
		return nil, apperr.NotFound("consent form not found")
	}
	cp := *f
	cp.Content = nil
	return &cp, nil
}

func (m *mockRepo) GetContent(_ context.Context, id uuid.UUID) (*ConsentForm, error) {
	f, ok := m.forms[id]
	if !ok {
		return nil, apperr.NotFound("consent form not found")
	}
	return f, nil
}

func (m *mockRepo) ListByType(_ context.Context, t Type) ([]*ConsentForm, error) {
	var out []*ConsentForm
	for _, f := range m.forms {
		if f.Type == t {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out, nil
}

func seedFS() fstest.MapFS {
	return fstest.MapFS{
		"surgical/colecistectomia.pdf":     {Data: []byte("%PDF-1.4 surgical A")},
		"surgical/apendicectomia.pdf":      {Data: []byte("%PDF-1.4 surgical B")},
		"surgical/notes.txt":               {Data: []byte("ignored")},
		"anesthesia/anestesia-general.pdf": {Data: []byte("%PDF-1.4 anesthesia")},
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"SURGICAL", TypeSurgical, true},
		{"surgical", TypeSurgical, true},
		{" anesthesia ", TypeAnesthesia, true},
		{"dental", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseType(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestService_Seed(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	n, err := svc.Seed(ctx, seedFS(), "/srv/forms", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	surgical, err := svc.List(ctx, "SURGICAL")
	require.NoError(t, err)
	require.Len(t, surgical, 2)
	assert.Equal(t, "apendicectomia.pdf", surgical[0].FileName)
	assert.Equal(t, int64(len("%PDF-1.4 surgical B")), surgical[0].FileSize)

	// Seeding again stores nothing new.
	n, err = svc.Seed(ctx, seedFS(), "/srv/forms", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, repo.forms, 3)
}

func TestService_Seed_KeepsStoredContent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Seed(ctx, seedFS(), "forms", zerolog.Nop())
	require.NoError(t, err)
	forms, _ := svc.List(ctx, "ANESTHESIA")
	require.Len(t, forms, 1)
	id := forms[0].ID

	edited := seedFS()
	edited["anesthesia/anestesia-general.pdf"] = &fstest.MapFile{Data: []byte("%PDF-1.4 DIFFERENT TEXT")}
	edited["anesthesia/anestesia-general-v2.pdf"] = &fstest.MapFile{Data: []byte("%PDF-1.4 DIFFERENT TEXT")}

	var logs bytes.Buffer
	n, err := svc.Seed(ctx, edited, "forms", zerolog.New(&logs))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the new file name is stored")

	full, err := svc.Content(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 anesthesia"), full.Content)
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), "anestesia-general.pdf")

	forms, _ = svc.List(ctx, "ANESTHESIA")
	require.Len(t, forms, 2)
	byName := map[string]uuid.UUID{}
	for _, f := range forms {
		byName[f.FileName] = f.ID
	}
	assert.Equal(t, id, byName["anestesia-general.pdf"])
	assert.NotEqual(t, id, byName["anestesia-general-v2.pdf"])
}

func TestService_List_RequiresValidType(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.List(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	forms, err := svc.List(context.Background(), "ANESTHESIA")
	require.NoError(t, err)
	assert.NotNil(t, forms)
	assert.Empty(t, forms)
}

func TestService_Content(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	_, err := svc.Seed(ctx, seedFS(), "forms", zerolog.Nop())
	require.NoError(t, err)

	forms, _ := svc.List(ctx, "ANESTHESIA")
	require.Len(t, forms, 1)

	meta, err := svc.Get(ctx, forms[0].ID)
	require.NoError(t, err)
	assert.Nil(t, meta.Content)

	full, err := svc.Content(ctx, forms[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 anesthesia"), full.Content)

	_, err = svc.Content(ctx, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
