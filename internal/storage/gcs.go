package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
)

// GCSRecordingStore keeps answer recordings in a private bucket, wrapped as
// WAV so review tooling can play them directly.
type GCSRecordingStore struct {
	client *gcs.Client
	bucket string
}

func NewGCSRecordingStore(ctx context.Context, bucket string) (*GCSRecordingStore, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSRecordingStore{client: c, bucket: bucket}, nil
}

func (s *GCSRecordingStore) Close() error { return s.client.Close() }

func (s *GCSRecordingStore) SaveAnswer(ctx context.Context, sessionID string, turnIndex int, sampleRateHz int, pcm []byte) (string, error) {
	objectName := fmt.Sprintf("recordings/%s/turn-%04d.wav", sessionID, turnIndex)
	obj := s.client.Bucket(s.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = "audio/wav"

	if _, err := w.Write(wavHeader(len(pcm), sampleRateHz)); err != nil {
		_ = w.Close()
		return "", err
	}
	if _, err := io.Copy(w, bytes.NewReader(pcm)); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return objectName, nil
}

func (s *GCSRecordingStore) SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	return s.client.Bucket(s.bucket).SignedURL(objectName, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
}

// wavHeader builds the 44-byte RIFF header for mono 16-bit PCM.
func wavHeader(dataLen, sampleRateHz int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRateHz * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 44)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRateHz))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	return buf
}
