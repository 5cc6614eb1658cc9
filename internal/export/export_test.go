package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/config"
	"github.com/septivank/plant-metrics-pipeline/internal/models"
)

func sampleRows() []models.PlantMetric {
	email := "carl.linnaeus@lnhm.co.uk"
	lon, lat := -19.32556, 33.95015
	town := "Stellenbosch"
	watered := time.Date(2024, 11, 25, 14, 3, 4, 0, time.UTC)
	return []models.PlantMetric{
		{
			PlantID:        1,
			BotanistName:   "Carl Linnaeus",
			Email:          &email,
			Longitude:      &lon,
			Latitude:       &lat,
			ClosestTown:    &town,
			Temperature:    13.1,
			SoilMoisture:   31.716,
			RecordingTaken: time.Date(2024, 11, 26, 9, 38, 44, 0, time.UTC),
			LastWatered:    &watered,
		},
		{
			PlantID:        2,
			BotanistName:   "Eliza Andrews",
			Temperature:    12,
			SoilMoisture:   40,
			RecordingTaken: time.Date(2024, 11, 26, 9, 38, 45, 0, time.UTC),
		},
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := RenderCSV(sampleRows(), 2)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(Header, ","), lines[0])
	assert.Equal(t, "1,Carl Linnaeus,carl.linnaeus@lnhm.co.uk,,-19.33,33.95,Stellenbosch,,,,,13.10,31.72,2024-11-26 09:38:44,2024-11-25 14:03:04", lines[1])
	assert.Equal(t, "2,Eliza Andrews,,,,,,,,,,12.00,40.00,2024-11-26 09:38:45,", lines[2])
}

func TestRenderCSV_EmptyBatchHasHeaderOnly(t *testing.T) {
	out, err := RenderCSV(nil, 2)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Header, ",")+"\n", string(out))
}

func TestObjectKey(t *testing.T) {
	started := time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "plant-metrics/2024/03/07/run-1.csv", ObjectKey("plant-metrics", "run-1", started))
	assert.Equal(t, "2024/03/07/run-1.csv", ObjectKey("", "run-1", started))
}

func TestFileSink_Put(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)

	location, err := sink.Put(context.Background(), "plant-metrics/2024/03/07/run-1.csv", []byte("a,b\n"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "plant-metrics", "2024", "03", "07", "run-1.csv"), location)
	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	_, err = os.Stat(location + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Put(t *testing.T) {
	putter := &fakePutter{}
	sink := &S3Sink{client: putter, bucket: "plants"}

	uri, err := sink.Put(context.Background(), "plant-metrics/2024/03/07/run-1.csv", []byte("a,b\n"))
	require.NoError(t, err)

	assert.Equal(t, "s3://plants/plant-metrics/2024/03/07/run-1.csv", uri)
	require.NotNil(t, putter.input)
	assert.Equal(t, "plants", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "plant-metrics/2024/03/07/run-1.csv", aws.ToString(putter.input.Key))
	assert.Equal(t, "text/csv", aws.ToString(putter.input.ContentType))
	assert.Equal(t, "a,b\n", string(putter.body))
}

func TestS3Sink_PutError(t *testing.T) {
	sink := &S3Sink{client: &fakePutter{err: errors.New("access denied")}, bucket: "plants"}

	_, err := sink.Put(context.Background(), "k.csv", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewSink(t *testing.T) {
	sink, err := NewSink(context.Background(), config.ExportConfig{Driver: config.ExportNone}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, sink)

	sink, err = NewSink(context.Background(), config.ExportConfig{Driver: config.ExportFile, Dir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, sink)

	_, err = NewSink(context.Background(), config.ExportConfig{Driver: "ftp"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewS3Sink(context.Background(), S3Config{})
	assert.Error(t, err)
}
