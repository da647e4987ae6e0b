package user

import (
	"context"
	"fmt"
	"io"

	"github.com/gastondana627/orielfx/internal/progress"
)

// ExportData streams the account's full data export to w, reporting
// download progress. Returns the number of bytes written.
func (s *Service) ExportData(ctx context.Context, w io.Writer, rep progress.Reporter) (int64, error) {
	body, length, err := s.client.Stream(ctx, "/api/user/export-data")
	if err != nil {
		return 0, fmt.Errorf("exporting data: %w", err)
	}
	defer body.Close()

	if rep != nil {
		rep.Start("Exporting account data", length)
		defer rep.Finish()
	}

	n, err := io.Copy(w, &countingReader{r: body, rep: rep})
	if err != nil {
		return n, fmt.Errorf("writing export: %w", err)
	}
	return n, nil
}

// countingReader feeds read progress to the reporter.
type countingReader struct {
	r   io.Reader
	rep progress.Reporter
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.rep != nil {
		c.rep.Add(int64(n))
	}
	return n, err
}
