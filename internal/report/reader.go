package report

import (
	"context"
	"encoding/csv"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

// TableOptions configures report file parsing.
type TableOptions struct {
	// SheetName selects an XLSX sheet by name; the first sheet is used
	// when empty.
	SheetName string

	// Encoding names the charset of a CSV file that is not UTF-8
	// (e.g. "windows-1252" for exports from older shop-floor tools).
	Encoding string
}

// ReadTable loads a CSV or XLSX report file and returns one record per
// data row, keyed by the header row. The format is chosen by file
// extension.
func ReadTable(path string, opts TableOptions) ([]map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path, opts)
	case ".csv", ".txt":
		return readCSV(path, opts)
	default:
		return nil, eris.Errorf("report: unsupported file type %q", filepath.Ext(path))
	}
}

func readCSV(path string, opts TableOptions) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: open csv")
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if opts.Encoding != "" {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return nil, eris.Wrapf(err, "report: unsupported charset %q", opts.Encoding)
		}
		r = enc.NewDecoder().Reader(f)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow ragged rows
	reader.LazyQuotes = true

	var header []string
	var records []map[string]any
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "report: read csv row")
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		if header == nil {
			header = row
			continue
		}
		records = append(records, toRecord(header, row))
	}

	if header == nil {
		return nil, eris.Errorf("report: %s has no header row", filepath.Base(path))
	}
	return records, nil
}

func readXLSX(path string, opts TableOptions) ([]map[string]any, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: open xlsx")
	}

	var sheet *xlsx.Sheet
	if opts.SheetName != "" {
		s, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("report: sheet %q not found", opts.SheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("report: xlsx file has no sheets")
		}
		sheet = f.Sheets[0]
	}

	var header []string
	var records []map[string]any
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		if i == 0 {
			header = cells
			continue
		}
		records = append(records, toRecord(header, cells))
	}

	if header == nil {
		return nil, eris.Errorf("report: %s has no header row", filepath.Base(path))
	}
	return records, nil
}

// toRecord zips a header and a data row; short rows leave trailing
// columns absent rather than empty.
func toRecord(header, row []string) map[string]any {
	rec := make(map[string]any, len(header))
	for i, name := range header {
		if name == "" || i >= len(row) {
			continue
		}
		rec[name] = row[i]
	}
	return rec
}

// ftpTimeout bounds the FTP dial for shop-floor file shares.
const ftpTimeout = 30 * time.Second

// Fetch resolves a report source to a local file path. An ftp:// URL is
// downloaded to a temp file (cleanup removes it); anything else is
// treated as a local path and returned unchanged.
func Fetch(ctx context.Context, source string) (string, func(), error) {
	if !strings.HasPrefix(strings.ToLower(source), "ftp://") {
		return source, func() {}, nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return "", nil, eris.Wrap(err, "report: parse ftp url")
	}
	host := u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" {
		return "", nil, eris.New("report: empty path in ftp url")
	}

	user, pass := "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}

	zap.L().Debug("report: fetching over ftp",
		zap.String("host", host),
		zap.String("path", u.Path),
	)

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return "", nil, eris.Wrap(err, "report: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(user, pass); err != nil {
		return "", nil, eris.Wrap(err, "report: ftp login")
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return "", nil, eris.Wrap(err, "report: ftp retrieve")
	}
	defer resp.Close() //nolint:errcheck

	tmp, err := os.CreateTemp("", "aoi-grader-*"+filepath.Ext(u.Path))
	if err != nil {
		return "", nil, eris.Wrap(err, "report: create temp file")
	}
	if _, err := io.Copy(tmp, resp); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", nil, eris.Wrap(err, "report: download report")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", nil, eris.Wrap(err, "report: close temp file")
	}

	path := tmp.Name()
	cleanup := func() {
		os.Remove(path) //nolint:errcheck
	}
	return path, cleanup, nil
}
