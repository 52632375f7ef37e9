package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Source, processor, and destination kinds accepted in a pipeline spec.
// Unknown kinds fail validation with invalid_spec.
const (
	SourceSyslogUDP    = "syslog_udp"
	SourceFileTail     = "file_tail"
	SourceHTTPListener = "http_listener"

	ProcessorRaw     = "raw"
	ProcessorIndexed = "indexed"

	DestinationSyslogUDP = "syslog_udp"
	DestinationFile      = "file"
	DestinationHTTP      = "http"
)

// Defaults applied by Normalize when the spec omits a value.
const (
	DefaultBatchMaxEvents  = 200
	DefaultBatchMaxSeconds = 1.0
	DefaultMaxQueueSize    = 50000

	DefaultIndexerTimeoutSeconds     = 3.0
	DefaultDestinationTimeoutSeconds = 5.0

	DefaultSyslogPort    = 514
	DefaultSyslogPri     = 13
	DefaultSyslogAppname = "observix"

	DefaultIngestPath = "/ingest"
)

// PipelineSpec is the declarative description of one pipeline: where events
// come from, how they are transformed, where they go, and how they batch.
type PipelineSpec struct {
	Source          SourceSpec      `json:"source" yaml:"source"`
	Processor       ProcessorSpec   `json:"processor" yaml:"processor"`
	Destination     DestinationSpec `json:"destination" yaml:"destination"`
	BatchMaxEvents  int             `json:"batch_max_events" yaml:"batch_max_events"`
	BatchMaxSeconds float64         `json:"batch_max_seconds" yaml:"batch_max_seconds"`
}

// SourceSpec is the tagged source variant: a kind plus kind-specific options.
type SourceSpec struct {
	Type    string         `json:"type" yaml:"type"`
	Options map[string]any `json:"options,omitempty" yaml:"options"`
}

// ProcessorSpec selects the processing mode plus mode-specific options.
type ProcessorSpec struct {
	Mode    string         `json:"mode" yaml:"mode"`
	Options map[string]any `json:"options,omitempty" yaml:"options"`
}

// DestinationSpec is the tagged destination variant.
type DestinationSpec struct {
	Type    string         `json:"type" yaml:"type"`
	Options map[string]any `json:"options,omitempty" yaml:"options"`
}

// Normalize fills omitted values with their defaults: batching bounds and the
// processor mode. Called before Validate so stored specs compare canonically.
func (s *PipelineSpec) Normalize() {
	if s.BatchMaxEvents == 0 {
		s.BatchMaxEvents = DefaultBatchMaxEvents
	}
	if s.BatchMaxSeconds == 0 {
		s.BatchMaxSeconds = DefaultBatchMaxSeconds
	}
	if s.Processor.Mode == "" {
		s.Processor.Mode = ProcessorRaw
	}
}

// Validate checks the spec invariants. It decodes every option block through
// its typed record, so a spec that validates here is guaranteed to decode at
// runtime on the agent.
func (s *PipelineSpec) Validate() error {
	if s.BatchMaxEvents < 1 {
		return fmt.Errorf("batch_max_events must be >= 1, got %d", s.BatchMaxEvents)
	}
	if s.BatchMaxSeconds <= 0 {
		return fmt.Errorf("batch_max_seconds must be > 0, got %g", s.BatchMaxSeconds)
	}

	switch s.Source.Type {
	case SourceSyslogUDP:
		if _, err := s.Source.SyslogUDP(); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	case SourceFileTail:
		if _, err := s.Source.FileTail(); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	case SourceHTTPListener:
		if _, err := s.Source.HTTPListener(); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	default:
		return fmt.Errorf("unknown source type: %q", s.Source.Type)
	}

	switch s.Processor.Mode {
	case ProcessorRaw:
	case ProcessorIndexed:
		if _, err := s.Processor.Indexed(); err != nil {
			return fmt.Errorf("processor: %w", err)
		}
	default:
		return fmt.Errorf("unknown processor mode: %q", s.Processor.Mode)
	}

	switch s.Destination.Type {
	case DestinationSyslogUDP:
		if _, err := s.Destination.SyslogUDP(); err != nil {
			return fmt.Errorf("destination: %w", err)
		}
	case DestinationFile:
		if _, err := s.Destination.File(); err != nil {
			return fmt.Errorf("destination: %w", err)
		}
	case DestinationHTTP:
		if _, err := s.Destination.HTTP(); err != nil {
			return fmt.Errorf("destination: %w", err)
		}
	default:
		return fmt.Errorf("unknown destination type: %q", s.Destination.Type)
	}

	return nil
}

// CanonicalJSON renders the spec deterministically for change detection.
func (s PipelineSpec) CanonicalJSON() ([]byte, error) {
	return json.Marshal(s)
}

// SyslogUDPSourceOptions configure a UDP syslog listener.
type SyslogUDPSourceOptions struct {
	Host         string
	Port         int
	MaxQueueSize int
}

// SyslogUDP decodes and validates syslog_udp source options.
func (s SourceSpec) SyslogUDP() (SyslogUDPSourceOptions, error) {
	var raw struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		MaxQueueSize int    `json:"max_queue_size"`
	}
	if err := decodeOptions(s.Options, &raw); err != nil {
		return SyslogUDPSourceOptions{}, err
	}
	opts := SyslogUDPSourceOptions{
		Host:         raw.Host,
		Port:         raw.Port,
		MaxQueueSize: raw.MaxQueueSize,
	}
	if opts.Host == "" {
		opts.Host = "0.0.0.0"
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = DefaultMaxQueueSize
	}
	if err := validatePort(opts.Port); err != nil {
		return SyslogUDPSourceOptions{}, err
	}
	return opts, nil
}

// FileTailSourceOptions configure a file tailer. Path may be a doublestar
// glob pattern; every match is tailed.
type FileTailSourceOptions struct {
	Path      string
	FromStart bool
}

// FileTail decodes and validates file_tail source options.
func (s SourceSpec) FileTail() (FileTailSourceOptions, error) {
	var raw struct {
		Path      string `json:"path"`
		FromStart bool   `json:"from_start"`
	}
	if err := decodeOptions(s.Options, &raw); err != nil {
		return FileTailSourceOptions{}, err
	}
	if raw.Path == "" {
		return FileTailSourceOptions{}, fmt.Errorf("path is required")
	}
	return FileTailSourceOptions{Path: raw.Path, FromStart: raw.FromStart}, nil
}

// HTTPListenerSourceOptions configure an HTTP ingest listener.
type HTTPListenerSourceOptions struct {
	Host         string
	Port         int
	Path         string
	MaxQueueSize int
}

// HTTPListener decodes and validates http_listener source options.
func (s SourceSpec) HTTPListener() (HTTPListenerSourceOptions, error) {
	var raw struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		Path         string `json:"path"`
		MaxQueueSize int    `json:"max_queue_size"`
	}
	if err := decodeOptions(s.Options, &raw); err != nil {
		return HTTPListenerSourceOptions{}, err
	}
	opts := HTTPListenerSourceOptions{
		Host:         raw.Host,
		Port:         raw.Port,
		Path:         raw.Path,
		MaxQueueSize: raw.MaxQueueSize,
	}
	if opts.Host == "" {
		opts.Host = "0.0.0.0"
	}
	if opts.Path == "" {
		opts.Path = DefaultIngestPath
	}
	if !strings.HasPrefix(opts.Path, "/") {
		opts.Path = "/" + opts.Path
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = DefaultMaxQueueSize
	}
	if err := validatePort(opts.Port); err != nil {
		return HTTPListenerSourceOptions{}, err
	}
	return opts, nil
}

// IndexedProcessorOptions configure the indexer round-trip.
type IndexedProcessorOptions struct {
	IndexerURL     string
	Profile        string
	TimeoutSeconds float64
	FallbackToRaw  bool
}

// Indexed decodes and validates indexed processor options. indexer_url and
// profile are mandatory; fallback_to_raw defaults to true.
func (p ProcessorSpec) Indexed() (IndexedProcessorOptions, error) {
	var raw struct {
		IndexerURL     string   `json:"indexer_url"`
		Profile        string   `json:"profile"`
		TimeoutSeconds *float64 `json:"timeout_seconds"`
		FallbackToRaw  *bool    `json:"fallback_to_raw"`
	}
	if err := decodeOptions(p.Options, &raw); err != nil {
		return IndexedProcessorOptions{}, err
	}
	opts := IndexedProcessorOptions{
		IndexerURL:     strings.TrimRight(raw.IndexerURL, "/"),
		Profile:        raw.Profile,
		TimeoutSeconds: DefaultIndexerTimeoutSeconds,
		FallbackToRaw:  true,
	}
	if raw.TimeoutSeconds != nil {
		opts.TimeoutSeconds = *raw.TimeoutSeconds
	}
	if raw.FallbackToRaw != nil {
		opts.FallbackToRaw = *raw.FallbackToRaw
	}
	if opts.IndexerURL == "" {
		return IndexedProcessorOptions{}, fmt.Errorf("indexer_url is required")
	}
	if opts.Profile == "" {
		return IndexedProcessorOptions{}, fmt.Errorf("profile is required")
	}
	if opts.TimeoutSeconds <= 0 {
		return IndexedProcessorOptions{}, fmt.Errorf("timeout_seconds must be > 0")
	}
	return opts, nil
}

// SyslogUDPDestinationOptions configure an outbound syslog sender.
type SyslogUDPDestinationOptions struct {
	Host     string
	Port     int
	Pri      int
	Hostname string
	Appname  string
}

// SyslogUDP decodes and validates syslog_udp destination options.
func (d DestinationSpec) SyslogUDP() (SyslogUDPDestinationOptions, error) {
	var raw struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Pri      *int   `json:"pri"`
		Hostname string `json:"hostname"`
		Appname  string `json:"appname"`
	}
	if err := decodeOptions(d.Options, &raw); err != nil {
		return SyslogUDPDestinationOptions{}, err
	}
	opts := SyslogUDPDestinationOptions{
		Host:     raw.Host,
		Port:     raw.Port,
		Pri:      DefaultSyslogPri,
		Hostname: raw.Hostname,
		Appname:  raw.Appname,
	}
	if raw.Pri != nil {
		opts.Pri = *raw.Pri
	}
	if opts.Host == "" {
		return SyslogUDPDestinationOptions{}, fmt.Errorf("host is required")
	}
	if opts.Port == 0 {
		opts.Port = DefaultSyslogPort
	}
	if err := validatePort(opts.Port); err != nil {
		return SyslogUDPDestinationOptions{}, err
	}
	if opts.Pri < 0 || opts.Pri > 191 {
		return SyslogUDPDestinationOptions{}, fmt.Errorf("pri must be within 0..191, got %d", opts.Pri)
	}
	if opts.Appname == "" {
		opts.Appname = DefaultSyslogAppname
	}
	return opts, nil
}

// FileDestinationOptions configure an append-only file sink.
type FileDestinationOptions struct {
	Path   string
	Format string // "raw" or "jsonl"
}

// File decodes and validates file destination options.
func (d DestinationSpec) File() (FileDestinationOptions, error) {
	var raw struct {
		Path   string `json:"path"`
		Format string `json:"format"`
	}
	if err := decodeOptions(d.Options, &raw); err != nil {
		return FileDestinationOptions{}, err
	}
	opts := FileDestinationOptions{Path: raw.Path, Format: raw.Format}
	if opts.Path == "" {
		return FileDestinationOptions{}, fmt.Errorf("path is required")
	}
	if opts.Format == "" {
		opts.Format = "raw"
	}
	if opts.Format != "raw" && opts.Format != "jsonl" {
		return FileDestinationOptions{}, fmt.Errorf("format must be raw or jsonl, got %q", opts.Format)
	}
	return opts, nil
}

// HTTPDestinationOptions configure an HTTP sink receiving JSON event arrays.
type HTTPDestinationOptions struct {
	URL            string
	TimeoutSeconds float64
}

// HTTP decodes and validates http destination options.
func (d DestinationSpec) HTTP() (HTTPDestinationOptions, error) {
	var raw struct {
		URL            string   `json:"url"`
		TimeoutSeconds *float64 `json:"timeout_seconds"`
	}
	if err := decodeOptions(d.Options, &raw); err != nil {
		return HTTPDestinationOptions{}, err
	}
	opts := HTTPDestinationOptions{
		URL:            raw.URL,
		TimeoutSeconds: DefaultDestinationTimeoutSeconds,
	}
	if raw.TimeoutSeconds != nil {
		opts.TimeoutSeconds = *raw.TimeoutSeconds
	}
	if opts.URL == "" {
		return HTTPDestinationOptions{}, fmt.Errorf("url is required")
	}
	if opts.TimeoutSeconds <= 0 {
		return HTTPDestinationOptions{}, fmt.Errorf("timeout_seconds must be > 0")
	}
	return opts, nil
}

// decodeOptions converts a loosely typed options map into a typed record via
// a JSON round-trip. Unknown keys are ignored; type mismatches are errors.
func decodeOptions(opts map[string]any, target any) error {
	if len(opts) == 0 {
		return nil
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be within 1..65535, got %d", port)
	}
	return nil
}
