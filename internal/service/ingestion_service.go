package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/repository/memory"
	"docchat-be/pkg/chunker"
	"docchat-be/pkg/embedding"
	"docchat-be/pkg/events"
	"docchat-be/pkg/extract"
	pktNats "docchat-be/pkg/nats"
	"docchat-be/pkg/store"
	"docchat-be/pkg/vectorindex"
)

type IIngestionService interface {
	// CreateSession ingests an upload batch into a fresh session: extract,
	// chunk, embed, index, then register. Unreadable files are skipped and
	// reported; everything else is all-or-nothing.
	CreateSession(ctx context.Context, files []dto.UploadedFile) (*dto.CreateSessionResponse, error)
}

type IngestionConfig struct {
	MaxUploadBytes   int64
	EmbedConcurrency int
	// EmbedDimension is advisory: a differing provider response is logged,
	// not rejected, since the index derives its width from the data.
	EmbedDimension int
}

type ingestionService struct {
	registry  *memory.SessionRegistry
	splitter  *chunker.Splitter
	embedder  embedding.EmbeddingProvider
	publisher IPublisherService
	mirror    *pktNats.Publisher
	logger    logger.ILogger
	cfg       IngestionConfig
}

func NewIngestionService(
	registry *memory.SessionRegistry,
	splitter *chunker.Splitter,
	embedder embedding.EmbeddingProvider,
	publisher IPublisherService,
	mirror *pktNats.Publisher,
	log logger.ILogger,
	cfg IngestionConfig,
) IIngestionService {
	return &ingestionService{
		registry:  registry,
		splitter:  splitter,
		embedder:  embedder,
		publisher: publisher,
		mirror:    mirror,
		logger:    log,
		cfg:       cfg,
	}
}

type acceptedFile struct {
	file dto.UploadedFile
	kind extract.Kind
}

func (s *ingestionService) CreateSession(ctx context.Context, files []dto.UploadedFile) (*dto.CreateSessionResponse, error) {
	if len(files) == 0 {
		return nil, &store.NoDocumentsError{}
	}

	accepted := make([]acceptedFile, 0, len(files))
	var rejections []store.UploadRejection
	for _, f := range files {
		if s.cfg.MaxUploadBytes > 0 && f.Size > s.cfg.MaxUploadBytes {
			rejections = append(rejections, store.UploadRejection{
				Filename: f.Filename,
				Error:    fmt.Sprintf("exceeds the %dMB size limit", s.cfg.MaxUploadBytes/(1024*1024)),
			})
			continue
		}
		kind, err := extract.Detect(f.Filename, f.Data)
		if err != nil {
			rejections = append(rejections, store.UploadRejection{
				Filename: f.Filename,
				Error:    rejectionReason(err),
			})
			continue
		}
		accepted = append(accepted, acceptedFile{file: f, kind: kind})
	}

	if len(accepted) == 0 {
		return nil, &store.NoDocumentsError{Rejections: rejections}
	}

	sessionID := uuid.New().String()
	sess := store.NewSession(sessionID)
	if err := sess.BeginIngestion(); err != nil {
		return nil, err
	}

	s.logger.Info("ingest", "session ingestion started", map[string]interface{}{
		"session_id": sessionID,
		"accepted":   len(accepted),
		"rejected":   len(rejections),
	})

	var (
		passages  []store.Passage
		infos     []dto.IngestedFileInfo
		documents []string
		summaries []events.DocumentSummary
	)
	// Ordinals run across the whole upload in file order, which makes the
	// index's equal-score tie-break total.
	ordinal := 0
	for _, af := range accepted {
		doc, err := extract.Extract(af.file.Filename, af.kind, af.file.Data)
		if err != nil {
			sess.FailIngestion()
			s.publishFailure(ctx, sessionID, err.Error())
			return nil, &store.IngestionError{Filename: af.file.Filename, Reason: "could not extract text", Err: err}
		}

		var chunks []chunker.Chunk
		if doc.Kind == extract.KindPDF {
			chunks = s.splitter.SplitPages(doc.Pages, doc.Filename)
		} else {
			chunks = s.splitter.Split(doc.Text, doc.Filename)
		}
		if len(chunks) == 0 {
			sess.FailIngestion()
			s.publishFailure(ctx, sessionID, doc.Filename+": no extractable text")
			return nil, &store.IngestionError{Filename: doc.Filename, Reason: "no extractable text", Err: extract.ErrEmptyDocument}
		}

		for _, ch := range chunks {
			passages = append(passages, store.Passage{
				ID:             uuid.New().String(),
				Text:           ch.Text,
				SourceDocument: ch.Source,
				Page:           ch.Page,
				Ordinal:        ordinal,
			})
			ordinal++
		}
		infos = append(infos, dto.IngestedFileInfo{
			Filename: doc.Filename,
			Pages:    len(doc.Pages),
			Chunks:   len(chunks),
		})
		documents = append(documents, doc.Filename)
		summaries = append(summaries, events.DocumentSummary{
			Filename:  doc.Filename,
			Pages:     len(doc.Pages),
			Chunks:    len(chunks),
			SizeBytes: af.file.Size,
		})
	}

	if err := s.embedAll(ctx, passages); err != nil {
		sess.FailIngestion()
		s.publishFailure(ctx, sessionID, err.Error())
		return nil, &store.EmbeddingFailure{Err: err}
	}

	idx := vectorindex.New()
	if err := idx.Insert(passages); err != nil {
		sess.FailIngestion()
		s.publishFailure(ctx, sessionID, err.Error())
		return nil, &store.EmbeddingFailure{Err: err}
	}
	idx.Seal()

	if err := sess.CompleteIngestion(idx, documents); err != nil {
		idx.Release()
		return nil, err
	}
	s.registry.Save(sess)

	publishSessionEvent(ctx, s.publisher, s.mirror, s.logger,
		events.NewSessionReady(sessionID, summaries, len(passages)))
	s.logger.Info("ingest", "session ready", map[string]interface{}{
		"session_id": sessionID,
		"documents":  len(documents),
		"passages":   len(passages),
	})

	return &dto.CreateSessionResponse{
		SessionId: sessionID,
		Files:     infos,
		Errors:    rejections,
	}, nil
}

// embedAll fills in passage embeddings with bounded parallelism. The first
// provider failure cancels the remaining work.
func (s *ingestionService) embedAll(ctx context.Context, passages []store.Passage) error {
	g, gctx := errgroup.WithContext(ctx)
	limit := s.cfg.EmbedConcurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i := range passages {
		i := i
		g.Go(func() error {
			res, err := s.embedder.Generate(gctx, passages[i].Text, embedding.TaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed passage %d: %w", i, err)
			}
			passages[i].Embedding = res.Embedding.Values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if s.cfg.EmbedDimension > 0 && len(passages) > 0 && len(passages[0].Embedding) != s.cfg.EmbedDimension {
		s.logger.Warn("ingest", "embedding dimension differs from configured value", map[string]interface{}{
			"configured": s.cfg.EmbedDimension,
			"actual":     len(passages[0].Embedding),
		})
	}
	return nil
}

func (s *ingestionService) publishFailure(ctx context.Context, sessionID, reason string) {
	s.logger.Error("ingest", "session ingestion failed", map[string]interface{}{
		"session_id": sessionID,
		"reason":     reason,
	})
	publishSessionEvent(ctx, s.publisher, s.mirror, s.logger,
		events.NewIngestionFailed(sessionID, reason))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, extract.ErrNoFilename):
		return "file has no filename"
	case errors.Is(err, extract.ErrUnsupportedType):
		return "unsupported file type (PDF, .txt or .md accepted)"
	default:
		return err.Error()
	}
}
