package stt

import (
	"context"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GoogleSpeech implements Recognizer over Cloud Speech-to-Text streaming
// recognition. One gRPC stream per Session; the backend caps stream length,
// which surfaces to callers as the session ending normally.
type GoogleSpeech struct {
	c *speech.Client
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, E(KindUnavailable, "failed to create speech client", err)
	}
	return &GoogleSpeech{c: c}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Start(ctx context.Context, cfg Config) (Session, error) {
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = 16000
	}

	stream, err := g.c.StreamingRecognize(ctx)
	if err != nil {
		return nil, classify(err, "failed to open streaming recognize")
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            cfg.SampleRateHz,
					LanguageCode:               cfg.Language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: cfg.InterimResults,
			},
		},
	}); err != nil {
		return nil, classify(err, "failed to send streaming config")
	}

	s := &googleSession{
		stream:  stream,
		results: make(chan Result, 16),
	}
	go s.recvLoop()
	return s, nil
}

type googleSession struct {
	stream speechpb.Speech_StreamingRecognizeClient

	mu     sync.Mutex
	closed bool
	err    error

	results chan Result
}

func (s *googleSession) Write(pcm []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return E(KindAborted, "session closed", nil)
	}
	s.mu.Unlock()

	err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: pcm,
		},
	})
	if err != nil {
		return classify(err, "failed to send audio")
	}
	return nil
}

func (s *googleSession) Results() <-chan Result { return s.results }

func (s *googleSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *googleSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.stream.CloseSend()
}

func (s *googleSession) recvLoop() {
	defer close(s.results)

	sawSpeech := false
	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			if !sawSpeech {
				s.setErr(E(KindNoSpeech, "stream ended without speech", nil))
			}
			return
		}
		if err != nil {
			s.mu.Lock()
			deliberate := s.closed
			s.mu.Unlock()
			if deliberate {
				s.setErr(E(KindAborted, "session closed", err))
			} else {
				s.setErr(classify(err, "streaming recv failed"))
			}
			return
		}

		for _, res := range resp.Results {
			if len(res.Alternatives) == 0 {
				continue
			}
			alt := res.Alternatives[0]
			if alt.Transcript == "" {
				continue
			}
			sawSpeech = true
			s.results <- Result{
				Transcript: alt.Transcript,
				IsFinal:    res.IsFinal,
				Confidence: float64(alt.Confidence),
				Timestamp:  time.Now().UTC(),
			}
		}
	}
}

func (s *googleSession) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// classify maps gRPC status codes onto the stt error taxonomy.
func classify(err error, msg string) error {
	st, ok := status.FromError(err)
	if !ok {
		return E(KindUnknown, msg, err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return E(KindNetwork, msg, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return E(KindPermissionDenied, msg, err)
	case codes.InvalidArgument, codes.FailedPrecondition:
		return E(KindAudioCapture, msg, err)
	case codes.Canceled:
		return E(KindAborted, msg, err)
	case codes.Unimplemented, codes.NotFound:
		return E(KindUnavailable, msg, err)
	default:
		return E(KindUnknown, msg, err)
	}
}
