package importer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

func TestParseCSV(t *testing.T) {
	in := "Email,Name,Company,Title\n" +
		"a@x.com,Ana,Acme,CTO\n" +
		"\n" +
		" b@y.com , Bo ,,\n"
	recs, err := Parse(strings.NewReader(in), FormatCSV)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, Record{Line: 2, Email: "a@x.com", Name: "Ana", Company: "Acme", Position: "CTO"}, recs[0])
	assert.Equal(t, "b@y.com", recs[1].Email)
	assert.Equal(t, "Bo", recs[1].Name)
	assert.Equal(t, 4, recs[1].Line)
}

func TestParseCSVShortRows(t *testing.T) {
	recs, err := Parse(strings.NewReader("email,name,company\na@x.com\n"), FormatCSV)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "", recs[0].Company)
}

func TestParseCSVMissingEmailColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("name,company\nAna,Acme\n"), FormatCSV)
	assert.ErrorIs(t, err, ErrMissingEmailColumn)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader(""), FormatCSV)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"email", "name", "company", "position"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"a@x.com", "Ana", "Acme", "CTO"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"b@y.com", "Bo"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	recs, err := Parse(buf, FormatXLSX)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Acme", recs[0].Company)
	assert.Equal(t, "b@y.com", recs[1].Email)
	assert.Equal(t, 3, recs[1].Line)
}

func TestFormatFromName(t *testing.T) {
	f, err := FormatFromName("leads.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = FormatFromName("s3-key/leads.xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = FormatFromName("leads.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

type fakeS3 struct {
	bucket, key string
	body        string
	err         error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket, f.key = *in.Bucket, *in.Key
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestOpenerLocal(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "leads.csv", []byte("email\na@x.com\n"), 0o644))

	rc, name, err := NewOpenerFs(fs, nil).Open(context.Background(), "leads.csv")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "leads.csv", name)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "email\na@x.com\n", string(data))
}

func TestOpenerS3(t *testing.T) {
	s := &fakeS3{body: "email\nb@y.com\n"}
	rc, name, err := NewOpenerFs(afero.NewMemMapFs(), s).Open(context.Background(), "s3://lists/2024/leads.csv")
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "lists", s.bucket)
	assert.Equal(t, "2024/leads.csv", s.key)
	assert.Equal(t, "2024/leads.csv", name)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "b@y.com")
}

func TestOpenerS3NotConfigured(t *testing.T) {
	_, _, err := NewOpenerFs(afero.NewMemMapFs(), nil).Open(context.Background(), "s3://lists/leads.csv")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOpenerS3Error(t *testing.T) {
	_, _, err := NewOpenerFs(afero.NewMemMapFs(), &fakeS3{err: errors.New("NoSuchKey")}).
		Open(context.Background(), "s3://lists/leads.csv")
	assert.Error(t, err)
}
