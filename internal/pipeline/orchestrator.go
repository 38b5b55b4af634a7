package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"printshop/internal/domain"
	"printshop/internal/extraction"
	"printshop/internal/imaging"
	"printshop/internal/infra"
	"printshop/internal/queue"
	"printshop/internal/storage"
)

// Orchestrator drives a claimed extraction job through its four stages:
// recomposition, background removal, normalization, and verification.
type Orchestrator struct {
	jobs       domain.JobRepository
	assets     domain.AssetRepository
	blobs      storage.BlobStore
	recomposer extraction.Recomposer
	remover    extraction.BackgroundRemover
	logger     infra.Logger
}

// NewOrchestrator wires the stage dependencies.
func NewOrchestrator(jobs domain.JobRepository, assets domain.AssetRepository, blobs storage.BlobStore, recomposer extraction.Recomposer, remover extraction.BackgroundRemover, logger infra.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:       jobs,
		assets:     assets,
		blobs:      blobs,
		recomposer: recomposer,
		remover:    remover,
		logger:     logger,
	}
}

// progress accumulates the human-readable log trail a job carries through its
// stages, mirroring what clients see while polling.
type progress struct {
	lines []string
}

func (p *progress) add(line string) string {
	p.lines = append(p.lines, line)
	return p.String()
}

func (p *progress) String() string { return strings.Join(p.lines, "\n") }

// Process runs the full pipeline for one claimed message. A nil return means
// the job reached done. A non-nil return is always a classified
// domain.StageError; the job row is already marked errored by the time it is
// returned, so the caller only decides redelivery.
func (o *Orchestrator) Process(ctx context.Context, msg queue.Message) error {
	log := o.logger.With().Str("job_id", msg.JobID).Logger()
	trail := &progress{}

	if err := o.jobs.UpdateStatus(ctx, msg.JobID, domain.JobStatusRunning, trail.add("Starting extraction process")); err != nil {
		return domain.Retryable(domain.StageRecomposition, fmt.Errorf("mark job running: %w", err))
	}

	// Stage 1: recomposition. The recomposed graphic is persisted here, so a
	// later stage failure still leaves the intermediate artifact behind.
	log.Info().Str("stage", domain.StageRecomposition).Msg("stage started")
	if err := o.jobs.UpdateStatus(ctx, msg.JobID, domain.JobStatusRunning, trail.add("Step 1/4: Recomposing the printed design")); err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Retryable(domain.StageRecomposition, err))
	}
	recomposed, err := o.recomposer.Recompose(ctx, msg.FilePath)
	if err != nil {
		return o.abort(ctx, log, msg.JobID, classify(domain.StageRecomposition, err))
	}
	whitePNG, err := imaging.Normalize(recomposed)
	if err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Retryable(domain.StageRecomposition, fmt.Errorf("encode recomposed image: %w", err)))
	}
	whiteAsset, err := o.storeArtifact(ctx, msg, domain.AssetKindWhiteBg, whitePNG)
	if err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Retryable(domain.StageRecomposition, err))
	}

	// Stage 2: background removal on the stage-1 output.
	log.Info().Str("stage", domain.StageBackgroundRemoval).Msg("stage started")
	if err := o.jobs.UpdateStatus(ctx, msg.JobID, domain.JobStatusRunning, trail.add("Step 2/4: Removing background")); err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Retryable(domain.StageBackgroundRemoval, err))
	}
	transparent, err := o.remover.RemoveBackground(ctx, whitePNG)
	if err != nil {
		return o.abort(ctx, log, msg.JobID, classify(domain.StageBackgroundRemoval, err))
	}

	// Stage 3: normalization. The transparent artifact is re-encoded as
	// lossless PNG pinned to print density, then stored.
	log.Info().Str("stage", domain.StageNormalization).Msg("stage started")
	if err := o.jobs.UpdateStatus(ctx, msg.JobID, domain.JobStatusRunning, trail.add("Step 3/4: Normalizing for print")); err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Retryable(domain.StageNormalization, err))
	}
	transparentPNG, err := imaging.Normalize(transparent)
	if err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Retryable(domain.StageNormalization, fmt.Errorf("normalize transparent image: %w", err)))
	}
	transparentAsset, err := o.storeArtifact(ctx, msg, domain.AssetKindTransparent, transparentPNG)
	if err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Retryable(domain.StageNormalization, err))
	}

	// Stage 4: verification. The stored final artifact must carry the exact
	// properties the pipeline promised.
	log.Info().Str("stage", domain.StageVerification).Msg("stage started")
	if err := o.jobs.UpdateStatus(ctx, msg.JobID, domain.JobStatusRunning, trail.add("Step 4/4: Verifying output metadata")); err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Retryable(domain.StageVerification, err))
	}
	meta, err := imaging.ReadMeta(transparentPNG)
	if err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Retryable(domain.StageVerification, fmt.Errorf("read artifact metadata: %w", err)))
	}
	if err := verifyMeta(meta); err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Terminal(domain.StageVerification, err))
	}

	result := domain.ResultData{
		OriginalAssetID:    msg.UploadAssetID,
		WhiteBgAssetID:     whiteAsset.ID,
		TransparentAssetID: transparentAsset.ID,
		Metadata: domain.ResultMetadata{
			Width:  meta.Width,
			Height: meta.Height,
			Format: meta.Format,
			DPI:    meta.DPI,
		},
	}
	if err := o.jobs.Complete(ctx, msg.JobID, result, trail.add("Extraction complete")); err != nil {
		return o.abort(ctx, log, msg.JobID, domain.Retryable(domain.StageVerification, fmt.Errorf("record job result: %w", err)))
	}

	log.Info().Int("width", meta.Width).Int("height", meta.Height).Int("dpi", meta.DPI).Msg("job completed")
	return nil
}

// storeArtifact persists one stage output and records its asset row. Keys are
// derived from the upload asset so redelivered attempts overwrite their own
// partial output instead of accumulating duplicates.
func (o *Orchestrator) storeArtifact(ctx context.Context, msg queue.Message, kind domain.AssetKind, data []byte) (*domain.Asset, error) {
	name := fmt.Sprintf("%s_%s.png", msg.UploadAssetID, kind)
	url, err := o.blobs.Put(ctx, name, data, "image/png")
	if err != nil {
		return nil, fmt.Errorf("store %s artifact: %w", kind, err)
	}

	// Name-based UUID keeps the row id stable across redeliveries.
	asset := &domain.Asset{
		ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte(msg.UploadAssetID+"/"+string(kind))).String(),
		OwnerType:    "job",
		OwnerID:      msg.UserID,
		FileURL:      url,
		FileType:     "png",
		FileSize:     int64(len(data)),
		OriginalName: name,
		Kind:         kind,
		JobID:        &msg.JobID,
	}
	if err := o.assets.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("record %s asset: %w", kind, err)
	}
	return asset, nil
}

// abort marks the job errored before surfacing the classified failure, so the
// job row never reports a state the queue has moved past.
func (o *Orchestrator) abort(ctx context.Context, log infra.Logger, jobID string, stageErr *domain.StageError) error {
	log.Error().Err(stageErr.Err).Str("stage", stageErr.Stage).Str("class", string(stageErr.Class)).Msg("stage failed")
	if err := o.jobs.Fail(ctx, jobID, stageErr.Error()); err != nil {
		log.Error().Err(err).Msg("failed to record job failure")
	}
	return stageErr
}

// verifyMeta checks the stored artifact against the print contract. A
// mismatch here means the normalizer itself misbehaved, which retrying the
// same inputs will not fix.
func verifyMeta(meta imaging.Meta) error {
	if meta.Format != "png" {
		return fmt.Errorf("artifact is %s, expected png", meta.Format)
	}
	if meta.DPI != imaging.PrintDPI {
		return fmt.Errorf("artifact density is %d dpi, expected %d", meta.DPI, imaging.PrintDPI)
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return fmt.Errorf("artifact has invalid dimensions %dx%d", meta.Width, meta.Height)
	}
	return nil
}

// classify keeps the adapter's own classification when it raised one and
// treats everything else, context cancellation included, as retryable.
func classify(stage string, err error) *domain.StageError {
	var se *domain.StageError
	if errors.As(err, &se) {
		return se
	}
	return domain.Retryable(stage, err)
}
