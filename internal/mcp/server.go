package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/pdf-slurper/internal/config"
	"github.com/a3tai/pdf-slurper/internal/descriptions"
	"github.com/a3tai/pdf-slurper/internal/export"
	"github.com/a3tai/pdf-slurper/internal/intake"
	"github.com/a3tai/pdf-slurper/internal/logger"
	"github.com/a3tai/pdf-slurper/internal/submission"
)

// Repository is the storage the tools read and edit
type Repository interface {
	intake.Store
	Get(ctx context.Context, id string) (*submission.Submission, error)
	List(ctx context.Context, limit int) ([]submission.Submission, error)
	Delete(ctx context.Context, id string) error
	UpdateSample(ctx context.Context, sample submission.Sample) (*submission.Sample, error)
	SaveQC(ctx context.Context, sampleID string, qc submission.QCResult) error
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	processor *intake.Processor
	repo      Repository
	logger    *logger.Logger
	mcpServer *server.MCPServer
	now       func() time.Time
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, processor *intake.Processor, repo Repository, log *logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if log == nil {
		log = logger.Nop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		processor: processor,
		repo:      repo,
		logger:    log,
		mcpServer: mcpServer,
		now:       func() time.Time { return time.Now().UTC() },
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"submission_import",
		mcp.WithDescription(descriptions.GetToolDescription("submission_import")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the request PDF"),
		),
		mcp.WithBoolean("reprocess",
			mcp.Description("Re-parse the file even if its content is already stored"),
		),
	), s.handleImport)

	s.mcpServer.AddTool(mcp.NewTool(
		"submission_get",
		mcp.WithDescription(descriptions.GetToolDescription("submission_get")),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Submission id"),
		),
	), s.handleGet)

	s.mcpServer.AddTool(mcp.NewTool(
		"submission_list",
		mcp.WithDescription(descriptions.GetToolDescription("submission_list")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of submissions, 0 for all"),
		),
	), s.handleList)

	s.mcpServer.AddTool(mcp.NewTool(
		"submission_export",
		mcp.WithDescription(descriptions.GetToolDescription("submission_export")),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Submission id"),
		),
		mcp.WithString("format",
			mcp.Description("json (default) or csv"),
			mcp.Enum(string(export.FormatJSON), string(export.FormatCSV)),
		),
	), s.handleExport)

	s.mcpServer.AddTool(mcp.NewTool(
		"submission_qc",
		mcp.WithDescription(descriptions.GetToolDescription("submission_qc")),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Submission id"),
		),
		mcp.WithString("evaluator",
			mcp.Description("Who ran the evaluation"),
		),
		mcp.WithNumber("min_concentration", mcp.Description("Minimum concentration in ng/uL")),
		mcp.WithNumber("min_volume", mcp.Description("Minimum volume in uL")),
		mcp.WithNumber("min_quality_ratio", mcp.Description("Minimum A260/A280 ratio")),
	), s.handleQC)

	s.mcpServer.AddTool(mcp.NewTool(
		"submission_delete",
		mcp.WithDescription(descriptions.GetToolDescription("submission_delete")),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Submission id"),
		),
	), s.handleDelete)

	s.mcpServer.AddTool(mcp.NewTool(
		"sample_update",
		mcp.WithDescription(descriptions.GetToolDescription("sample_update")),
		mcp.WithString("submission_id", mcp.Required(), mcp.Description("Submission the sample belongs to")),
		mcp.WithString("sample_id", mcp.Required(), mcp.Description("Sample id")),
		mcp.WithString("name", mcp.Description("New sample name")),
		mcp.WithNumber("volume_ul", mcp.Description("Volume in uL")),
		mcp.WithNumber("qubit_ng_per_ul", mcp.Description("Qubit concentration")),
		mcp.WithNumber("nanodrop_ng_per_ul", mcp.Description("Nanodrop concentration")),
		mcp.WithNumber("concentration_ng_per_ul", mcp.Description("Concentration without instrument")),
		mcp.WithNumber("a260_a280", mcp.Description("A260/A280 ratio")),
		mcp.WithNumber("a260_a230", mcp.Description("A260/A230 ratio")),
		mcp.WithString("status", mcp.Description("Workflow status, e.g. processing or sequenced")),
	), s.handleSampleUpdate)

	s.mcpServer.AddTool(mcp.NewTool(
		"server_info",
		mcp.WithDescription(descriptions.GetToolDescription("server_info")),
	), s.handleServerInfo)
}

// Handler functions
func (s *Server) handleImport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reprocess := boolArg(request.GetArguments(), "reprocess")

	result, err := s.processor.ProcessFile(ctx, path, reprocess)
	if err != nil {
		s.logger.Warn("import failed", "path", path, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatImportResult(result)), nil
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sub, samples, errResult := s.loadSubmission(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	var buf bytes.Buffer
	if err := export.JSON(&buf, sub, samples); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 0
	if v := floatArg(request.GetArguments(), "limit"); v != nil {
		limit = int(*v)
	}

	list, err := s.repo.List(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(list) == 0 {
		return mcp.NewToolResultText("No submissions stored"), nil
	}
	return mcp.NewToolResultText(s.formatSubmissionList(list)), nil
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := export.ParseFormat(stringArg(request.GetArguments(), "format"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sub, samples, errResult := s.loadSubmission(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, sub, samples); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) handleQC(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sub, samples, errResult := s.loadSubmission(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	args := request.GetArguments()
	thresholds := submission.DefaultQCThresholds()
	if v := floatArg(args, "min_concentration"); v != nil {
		thresholds.MinConcentration = *v
	}
	if v := floatArg(args, "min_volume"); v != nil {
		thresholds.MinVolume = *v
	}
	if v := floatArg(args, "min_quality_ratio"); v != nil {
		thresholds.MinQualityRatio = *v
	}
	evaluator := stringArg(args, "evaluator")

	now := s.now()
	for i := range samples {
		qc := samples[i].EvaluateQC(thresholds, evaluator, now)
		if err := s.repo.SaveQC(ctx, samples[i].ID, qc); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		samples[i].QC = &qc
	}

	s.logger.Info("qc evaluated", "submission_id", sub.ID, "samples", len(samples))
	return mcp.NewToolResultText(s.formatQCResult(sub, samples)), nil
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(notFoundMessage(err, id)), nil
	}

	s.logger.Info("submission deleted", "submission_id", id)
	return mcp.NewToolResultText(fmt.Sprintf("Deleted submission %s and its samples", id)), nil
}

func (s *Server) handleSampleUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	submissionID, err := request.RequireString("submission_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sampleID, err := request.RequireString("sample_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	samples, err := s.repo.ListSamples(ctx, submissionID)
	if err != nil {
		return mcp.NewToolResultError(notFoundMessage(err, submissionID)), nil
	}
	var sample *submission.Sample
	for i := range samples {
		if samples[i].ID == sampleID {
			sample = &samples[i]
			break
		}
	}
	if sample == nil {
		return mcp.NewToolResultError(fmt.Sprintf("sample %s not found in submission %s", sampleID, submissionID)), nil
	}

	args := request.GetArguments()
	if name, ok := args["name"].(string); ok {
		sample.Name = &name
	}
	measurements := []struct {
		key string
		dst **float64
	}{
		{"volume_ul", &sample.VolumeUL},
		{"qubit_ng_per_ul", &sample.QubitConcentration},
		{"nanodrop_ng_per_ul", &sample.NanodropConcentration},
		{"concentration_ng_per_ul", &sample.Concentration},
		{"a260_a280", &sample.A260A280},
		{"a260_a230", &sample.A260A230},
	}
	for _, m := range measurements {
		if v := floatArg(args, m.key); v != nil {
			*m.dst = v
		}
	}
	if raw := stringArg(args, "status"); raw != "" {
		status, err := submission.ParseWorkflowStatus(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sample.Status = status
	}

	updated, err := s.repo.UpdateSample(ctx, *sample)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.logger.Info("sample edited", "submission_id", submissionID, "sample_id", sampleID)
	return mcp.NewToolResultText(s.formatSample(1, *updated)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.repo.List(ctx, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatServerInfo(len(list))), nil
}

// loadSubmission reads the submission named by the "id" argument with its samples
func (s *Server) loadSubmission(ctx context.Context, request mcp.CallToolRequest) (
	*submission.Submission, []submission.Sample, *mcp.CallToolResult,
) {
	id, err := request.RequireString("id")
	if err != nil {
		return nil, nil, mcp.NewToolResultError(err.Error())
	}

	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, mcp.NewToolResultError(notFoundMessage(err, id))
	}
	samples, err := s.repo.ListSamples(ctx, id)
	if err != nil {
		return nil, nil, mcp.NewToolResultError(notFoundMessage(err, id))
	}
	return sub, samples, nil
}

func notFoundMessage(err error, id string) string {
	if errors.Is(err, submission.ErrNotFound) {
		return fmt.Sprintf("submission %s not found", id)
	}
	return err.Error()
}

// Formatting methods
func (s *Server) formatImportResult(result *intake.Result) string {
	sub := result.Submission

	var text string
	switch result.Status {
	case intake.StatusAlreadyExists:
		text = fmt.Sprintf("Content already imported as submission %s\n", sub.ID)
	case intake.StatusReprocessed:
		text = fmt.Sprintf("Reprocessed submission %s\n", sub.ID)
	default:
		text = fmt.Sprintf("Imported submission %s\n", sub.ID)
	}
	text += fmt.Sprintf("Status: %s\n", result.Status)
	text += fmt.Sprintf("File: %s (%d bytes)\n", sub.SourceFileName, sub.SourceSize)
	text += fmt.Sprintf("Pages: %d\n", sub.Document.PageCount)
	if sub.Fields.Requester != nil {
		text += fmt.Sprintf("Requester: %s\n", *sub.Fields.Requester)
	}
	if sub.Fields.Lab != nil {
		text += fmt.Sprintf("Lab: %s\n", *sub.Fields.Lab)
	}
	text += fmt.Sprintf("Samples: %d\n", len(result.Samples))

	if result.Degraded.Count > 0 {
		text += fmt.Sprintf("\nWARNING: %d value(s) could not be read and were left empty:\n", result.Degraded.Count)
		for _, field := range result.Degraded.Fields {
			text += fmt.Sprintf("  • %s\n", field)
		}
	}

	if len(result.Samples) > 0 {
		text += "\nSamples:\n"
		for i, sample := range result.Samples {
			text += s.formatSample(i+1, sample)
		}
	}

	return text
}

func (s *Server) formatSample(n int, sample submission.Sample) string {
	name := "(unnamed)"
	if sample.Name != nil && *sample.Name != "" {
		name = *sample.Name
	}
	text := fmt.Sprintf("%d. %s [%s]\n", n, name, sample.ID)
	text += fmt.Sprintf("   Page %d, table %d, row %d\n", sample.PageIndex+1, sample.TableIndex+1, sample.RowIndex+1)
	if sample.VolumeUL != nil {
		text += fmt.Sprintf("   Volume: %g uL\n", *sample.VolumeUL)
	}
	if c := sample.BestConcentration(); c != nil {
		text += fmt.Sprintf("   Concentration: %g ng/uL\n", *c)
	}
	if sample.A260A280 != nil {
		text += fmt.Sprintf("   A260/A280: %g\n", *sample.A260A280)
	}
	if sample.A260A230 != nil {
		text += fmt.Sprintf("   A260/A230: %g\n", *sample.A260A230)
	}
	text += fmt.Sprintf("   Status: %s\n", sample.Status)
	if sample.QC != nil {
		text += fmt.Sprintf("   QC: %s\n", sample.QC.Status)
		for _, issue := range sample.QC.Issues {
			text += fmt.Sprintf("     - %s\n", issue)
		}
	}
	return text
}

func (s *Server) formatSubmissionList(list []submission.Submission) string {
	text := fmt.Sprintf("Found %d submission(s)\n\n", len(list))
	for i, sub := range list {
		text += fmt.Sprintf("%d. %s\n", i+1, sub.ID)
		if sub.SourceFileName != "" {
			text += fmt.Sprintf("   File: %s\n", sub.SourceFileName)
		}
		if sub.Fields.Requester != nil {
			text += fmt.Sprintf("   Requester: %s\n", *sub.Fields.Requester)
		}
		if sub.Fields.Lab != nil {
			text += fmt.Sprintf("   Lab: %s\n", *sub.Fields.Lab)
		}
		text += fmt.Sprintf("   Imported: %s\n", sub.CreatedAt.Format(time.RFC3339))
		if i < len(list)-1 {
			text += "\n"
		}
	}
	return text
}

func (s *Server) formatQCResult(sub *submission.Submission, samples []submission.Sample) string {
	stats := submission.ComputeStatistics(samples)

	text := fmt.Sprintf("QC for submission %s\n", sub.ID)
	text += fmt.Sprintf("Samples: %d\n", stats.TotalSamples)
	for _, status := range []submission.QCStatus{submission.QCPassed, submission.QCWarning, submission.QCFailed} {
		text += fmt.Sprintf("%s: %d\n", status, stats.QCStatus[status])
	}
	if stats.AverageConcentration != nil {
		text += fmt.Sprintf("Average concentration: %.2f ng/uL\n", *stats.AverageConcentration)
	}
	if stats.AverageVolume != nil {
		text += fmt.Sprintf("Average volume: %.2f uL\n", *stats.AverageVolume)
	}
	if stats.AverageQualityScore != nil {
		text += fmt.Sprintf("Average quality score: %.1f\n", *stats.AverageQualityScore)
	}

	if len(samples) > 0 {
		text += "\nSamples:\n"
		for i, sample := range samples {
			text += s.formatSample(i+1, sample)
		}
	}
	return text
}

func (s *Server) formatServerInfo(submissions int) string {
	text := fmt.Sprintf("%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("Database: %s\n", s.config.DBPath)
	text += fmt.Sprintf("Stored submissions: %d\n", submissions)
	text += fmt.Sprintf("Max File Size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("Sample table header threshold: %d column(s)\n", s.config.MinHeaderMatches)

	text += "\nAvailable Tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		text += fmt.Sprintf("\n• %s\n", name)
		text += descriptions.GetToolDescription(name) + "\n"
	}
	return text
}

// Argument helpers. JSON numbers arrive as float64.
func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func floatArg(args map[string]any, key string) *float64 {
	switch v := args[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

// Run serves MCP on standard I/O until stdin closes or ctx is done
func (s *Server) Run(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting MCP server on stdio",
		"server", s.config.ServerName,
		"version", s.config.Version,
		"db", s.config.DBPath)

	stdio := server.NewStdioServer(s.mcpServer)
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
