package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// form builds a multipart/form-data body in memory so its length is known
// up front; upload progress is reported against that length.
type form struct {
	buf bytes.Buffer
	w   *multipart.Writer
}

func newForm() *form {
	f := &form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *form) field(name, value string) error {
	return f.w.WriteField(name, value)
}

func (f *form) file(field string, u Upload) error {
	if u.Content == nil {
		return fmt.Errorf("file %q has no content", u.Name)
	}
	contentType := u.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(u.Name)))
	h.Set("Content-Type", contentType)

	part, err := f.w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, u.Content); err != nil {
		return fmt.Errorf("reading %q: %w", u.Name, err)
	}
	return nil
}

// close finalizes the body and returns it with its content type and length.
func (f *form) close() (*bytes.Reader, string, int64, error) {
	if err := f.w.Close(); err != nil {
		return nil, "", 0, err
	}
	return bytes.NewReader(f.buf.Bytes()), f.w.FormDataContentType(), int64(f.buf.Len()), nil
}

// progressReader reports the percentage of total bytes read so far.
// Percentages are reported only when they change.
type progressReader struct {
	r     io.Reader
	total int64
	fn    ProgressFunc

	mu   sync.Mutex
	read int64
	last int
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, fn: fn, last: -1}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 || err == io.EOF {
		p.advance(int64(n))
	}
	return n, err
}

func (p *progressReader) advance(n int64) {
	p.mu.Lock()
	p.read += n
	pct := 100
	if p.total > 0 {
		pct = int((p.read*100 + p.total/2) / p.total)
	}
	if pct > 100 {
		pct = 100
	}
	changed := pct != p.last
	p.last = pct
	p.mu.Unlock()

	if changed && p.fn != nil {
		p.fn(pct)
	}
}

func (p *progressReader) bytesRead() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.read
}
