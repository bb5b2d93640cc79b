package consentform

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/preop/preop/internal/platform/apperr"
)

// seedDirs maps the seed directory layout to form types.
var seedDirs = []struct {
	dir string
	typ Type
}{
	{"surgical", TypeSurgical},
	{"anesthesia", TypeAnesthesia},
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the forms of one type. The type is mandatory.
func (s *Service) List(ctx context.Context, rawType string) ([]*ConsentForm, error) {
	t, ok := ParseType(rawType)
	if !ok {
		return nil, apperr.Validation("type must be SURGICAL or ANESTHESIA")
	}
	forms, err := s.repo.ListByType(ctx, t)
	if err != nil {
		return nil, err
	}
	if forms == nil {
		forms = []*ConsentForm{}
	}
	return forms, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ConsentForm, error) {
	return s.repo.GetByID(ctx, id)
}

// Content returns the form with its PDF bytes loaded.
func (s *Service) Content(ctx context.Context, id uuid.UUID) (*ConsentForm, error) {
	return s.repo.GetContent(ctx, id)
}

// Seed loads surgical/*.pdf and anesthesia/*.pdf from fsys and returns how
// many new forms were stored. base is recorded as the file path prefix.
//
// Forms are immutable: a file whose type and name are already stored is
// skipped, and a warning is logged when its bytes differ from the stored
// ones. A revised PDF must be seeded under a new file name.
func (s *Service) Seed(ctx context.Context, fsys fs.FS, base string, logger zerolog.Logger) (int, error) {
	loaded := 0
	for _, sd := range seedDirs {
		matches, err := fs.Glob(fsys, path.Join(sd.dir, "*.pdf"))
		if err != nil {
			return loaded, fmt.Errorf("glob %s: %w", sd.dir, err)
		}
		if len(matches) == 0 {
			logger.Warn().Str("dir", sd.dir).Msg("no consent forms found")
			continue
		}
		for _, name := range matches {
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				return loaded, fmt.Errorf("read %s: %w", name, err)
			}
			f := &ConsentForm{
				Type:     sd.typ,
				FileName: path.Base(name),
				FilePath: filepath.Join(base, filepath.FromSlash(name)),
				FileSize: int64(len(content)),
				Content:  content,
			}
			inserted, err := s.repo.Insert(ctx, f)
			if err != nil {
				return loaded, fmt.Errorf("store %s: %w", name, err)
			}
			if !inserted {
				stored, err := s.repo.GetByName(ctx, f.Type, f.FileName)
				if err != nil {
					return loaded, fmt.Errorf("load stored %s: %w", name, err)
				}
				evt := logger.Info()
				msg := "consent form already stored"
				if !bytes.Equal(stored.Content, content) {
					evt = logger.Warn().
						Str("stored_sha256", digest(stored.Content)).
						Str("file_sha256", digest(content))
					msg = "consent form changed on disk; stored version kept, seed it under a new file name"
				}
				evt.Str("id", stored.ID.String()).Str("type", string(f.Type)).Str("file", f.FileName).Msg(msg)
				continue
			}
			logger.Info().Str("type", string(f.Type)).Str("file", f.FileName).Int64("bytes", f.FileSize).Msg("consent form loaded")
			loaded++
		}
	}
	return loaded, nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
