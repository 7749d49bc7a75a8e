package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/stage"
	"leadflow/internal/textutil"
)

// FieldItemID carries the record id inside the render fields.
const FieldItemID = "item_id"

// Artifact points at the rendered files. DocumentPath equals Path when no
// converter is configured.
type Artifact struct {
	Path         string
	DocumentPath string
}

// Renderer produces a document from a template reference and payload fields.
type Renderer interface {
	Render(ctx context.Context, templateRef string, fields map[string]string) (Artifact, error)
}

// FileRenderer writes Markdown artifacts into a directory.
type FileRenderer struct {
	dir       string
	converter Converter
}

// NewFileRenderer constructs a renderer writing into dir.
func NewFileRenderer(dir string, converter Converter) *FileRenderer {
	return &FileRenderer{dir: dir, converter: converter}
}

// artifactHashLen is the number of hex digits of the id hash kept in a stem.
const artifactHashLen = 12

// ArtifactStem is the deterministic file stem for a company and record id.
// The suffix hashes the whole id, so ids sharing a prefix get distinct files.
func ArtifactStem(company, id string) string {
	sum := sha256.Sum256([]byte(id))
	return textutil.FileStem(company, "lead") + "_" + hex.EncodeToString(sum[:])[:artifactHashLen]
}

// Render implements Renderer.
func (r *FileRenderer) Render(ctx context.Context, templateRef string, fields map[string]string) (Artifact, error) {
	tmpl, err := LoadTemplate(templateRef)
	if err != nil {
		return Artifact{}, err
	}
	id := strings.TrimSpace(fields[FieldItemID])
	if id == "" {
		return Artifact{}, services.Wrap(services.ErrValidation, "render", "render", "item id missing", nil)
	}
	company := strings.TrimSpace(fields["company_name"])
	blurbs := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		blurbs = append(blurbs, fields[fmt.Sprintf("blurb_%d", i)])
	}
	body := tmpl.Markdown(Values{
		Name:        strings.TrimSpace(fields["sender_name"]),
		Company:     company,
		Description: strings.TrimSpace(fields["company_description"]),
		Blurbs:      blurbs,
	})

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return Artifact{}, services.Wrap(services.ErrConfiguration, "render", "prepare artifact dir", r.dir, err)
	}
	path := filepath.Join(r.dir, ArtifactStem(company, id)+".md")
	if err := writeFileAtomic(path, []byte(body)); err != nil {
		return Artifact{}, services.Wrap(services.ErrTransient, "render", "write artifact", path, err)
	}

	artifact := Artifact{Path: path, DocumentPath: path}
	if r.converter.Enabled() {
		converted, err := r.converter.Convert(ctx, path, r.dir)
		if err != nil {
			return Artifact{}, err
		}
		artifact.DocumentPath = converted
	}
	return artifact, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// Executor is the render stage.
type Executor struct {
	renderer    Renderer
	templateRef string
	logger      *slog.Logger
}

// NewExecutor constructs the render stage.
func NewExecutor(renderer Renderer, templateRef string, logger *slog.Logger) *Executor {
	return &Executor{renderer: renderer, templateRef: templateRef, logger: logging.NewComponentLogger(logger, "render")}
}

// Stage implements stage.Executor.
func (e *Executor) Stage() ledger.Stage { return ledger.StageRender }

// Execute implements stage.Executor.
func (e *Executor) Execute(ctx context.Context, rec *ledger.Record) stage.Outcome {
	fields := map[string]string(rec.Payload.Clone())
	fields[FieldItemID] = rec.ID
	artifact, err := e.renderer.Render(ctx, e.templateRef, fields)
	if err != nil {
		return stage.FromError(err)
	}
	logging.WithContext(ctx, e.logger).Debug("artifact written",
		logging.String("artifact_ref", artifact.Path),
		logging.String("document_ref", artifact.DocumentPath),
	)
	return stage.Advance(ledger.Payload{
		"artifact_ref": artifact.Path,
		"document_ref": artifact.DocumentPath,
	})
}
