package tools

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/itsuki0/term-assistant/internal/llm"
)

// FileSystem reads whole files. OSFileSystem and fstest.MapFS satisfy it.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileSystem reads from the host filesystem.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// documentFormats maps file extensions the model service accepts as
// documents.
var documentFormats = map[string]llm.DocumentFormat{
	"pdf":  llm.DocumentPDF,
	"csv":  llm.DocumentCSV,
	"doc":  llm.DocumentDOC,
	"docx": llm.DocumentDOCX,
	"html": llm.DocumentHTML,
	"md":   llm.DocumentMD,
	"txt":  llm.DocumentTXT,
	"xls":  llm.DocumentXLS,
	"xlsx": llm.DocumentXLSX,
}

// DocumentFormatFor returns the document format for path's extension.
func DocumentFormatFor(path string) (llm.DocumentFormat, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	format, ok := documentFormats[ext]
	return format, ok
}

// ReadFileTool implements READ_FILE.
type ReadFileTool struct {
	fs FileSystem
}

// NewReadFileTool creates a new ReadFileTool. A nil fs reads from the host.
func NewReadFileTool(fsys FileSystem) *ReadFileTool {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	return &ReadFileTool{fs: fsys}
}

// ReadFileArgs are the arguments for READ_FILE.
type ReadFileArgs struct {
	Path string `json:"path" jsonschema_description:"The path of the file to read."`
}

func (t *ReadFileTool) ID() ID { return ReadFile }

func (t *ReadFileTool) Spec() (llm.ToolSpec, error) {
	return toolSpec[ReadFileArgs](ReadFile,
		"Read the contents of a file at the specified path. Use this when you need to examine the contents of an existing file.")
}

func (t *ReadFileTool) Preview(input llm.Value) string {
	var a ReadFileArgs
	if err := decodeArgs(input, &a); err != nil {
		return ""
	}
	return a.Path
}

func (t *ReadFileTool) Execute(ctx context.Context, id string, input llm.Value) llm.ToolResult {
	var args ReadFileArgs
	if err := decodeArgs(input, &args); err != nil {
		return errorResult(id, err)
	}
	if args.Path == "" {
		return errorResult(id, NewToolError(ErrInvalidParams, "path is required"))
	}

	data, err := t.fs.ReadFile(args.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errorResult(id, NewToolError(ErrFileNotFound, err.Error()))
		}
		return errorResult(id, NewToolError(ErrExecutionFailed, err.Error()))
	}

	if format, ok := DocumentFormatFor(args.Path); ok {
		return llm.ToolResult{
			ToolUseID: id,
			Status:    llm.ToolSuccess,
			Content: []llm.ToolResultContent{
				{Text: "File read."},
				{Document: &llm.Document{Name: "file_read", Format: format, Bytes: data}},
			},
		}
	}

	if !utf8.Valid(data) {
		decodeErr := &llm.DecodeError{Input: args.Path, Err: errors.New("file is not valid UTF-8")}
		return errorResult(id, NewToolError(ErrDecodeFailed, decodeErr.Error()))
	}
	return llm.TextResult(id, llm.ToolSuccess, "File read with Content: "+string(data))
}
