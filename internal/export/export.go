package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"exposure/internal/model"
	"exposure/internal/utils"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat normalizes user input. Unknown names are kept as-is so that
// Export can ignore them.
func ParseFormat(s string) Format {
	return Format(strings.ToLower(strings.TrimSpace(s)))
}

func (f Format) Supported() bool {
	return f == FormatJSON || f == FormatCSV
}

// Export writes report to stem plus the format extension and returns the
// written path. Unsupported formats write nothing and return an empty path.
func Export(report model.Report, stem string, format Format) (string, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		err = WriteJSON(&buf, report)
		data = buf.Bytes()
	case FormatCSV:
		data, err = encodeCSV(report)
	default:
		utils.Log.Debug("export skipped", utils.Field("format", string(format)))
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "encode %s", format)
	}

	path := stem + "." + string(format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write export")
	}
	utils.Log.Info("report exported", utils.Field("path", path))
	return path, nil
}

// WriteJSON writes v indented by four spaces without HTML escaping.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

func encodeCSV(report model.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, e := range report.Entries() {
		cell, err := stringify(e.Result.Data())
		if err != nil {
			return nil, errors.Wrap(err, e.Key)
		}
		if err := w.Write([]string{e.Key, cell}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// stringify writes strings as-is and any other value as compact JSON.
func stringify(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := model.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
