package speechgrpc

import (
	"encoding/base64"
	"fmt"

	"github.com/mindfulai/mindful/internal/transcribe"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire format: every message is a google.protobuf.Struct. The first client
// message carries "config"; later ones carry base64 PCM in "audio". Server
// messages carry a "results" list of {transcript, confidence, is_final}.
const (
	ServiceName = "mindful.speech.v1.Recognizer"
	MethodName  = "StreamingRecognize"
	FullMethod  = "/" + ServiceName + "/" + MethodName
)

var streamDesc = grpc.StreamDesc{
	StreamName:    MethodName,
	ServerStreams: true,
	ClientStreams: true,
}

// RecognizerServer is the server half of the recognition stream.
type RecognizerServer interface {
	StreamingRecognize(stream grpc.ServerStream) error
}

// ServiceDesc describes the recognizer service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecognizerServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName: MethodName,
		Handler: func(srv any, stream grpc.ServerStream) error {
			return srv.(RecognizerServer).StreamingRecognize(stream)
		},
		ServerStreams: true,
		ClientStreams: true,
	}},
}

// RegisterRecognizerServer attaches srv to s.
func RegisterRecognizerServer(s *grpc.Server, srv RecognizerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func configRequest(opts transcribe.Options) (*structpb.Struct, error) {
	phrases := make([]any, 0, len(opts.Phrases))
	for _, phrase := range opts.Phrases {
		if phrase.Phrase == "" {
			continue
		}
		phrases = append(phrases, map[string]any{
			"phrase": phrase.Phrase,
			"boost":  float64(phrase.Boost),
		})
	}

	msg, err := structpb.NewStruct(map[string]any{
		"config": map[string]any{
			"language":              opts.Language,
			"model":                 opts.Model,
			"sample_rate":           opts.SampleRate,
			"encoding":              "LINEAR_PCM",
			"channels":              1,
			"interim_results":       opts.InterimResults,
			"automatic_punctuation": opts.AutomaticPunctuation,
			"phrases":               phrases,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build config request: %w", err)
	}
	return msg, nil
}

func audioRequest(pcm []byte) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"audio": structpb.NewStringValue(base64.StdEncoding.EncodeToString(pcm)),
	}}
}

// DecodeAudio extracts PCM from an audio request; ok is false for other messages.
func DecodeAudio(msg *structpb.Struct) ([]byte, bool, error) {
	value, ok := msg.GetFields()["audio"]
	if !ok {
		return nil, false, nil
	}
	pcm, err := base64.StdEncoding.DecodeString(value.GetStringValue())
	if err != nil {
		return nil, true, fmt.Errorf("decode audio: %w", err)
	}
	return pcm, true, nil
}

// ResultsResponse builds a server message from recognition results.
func ResultsResponse(results ...transcribe.Result) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(results))
	for _, result := range results {
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"transcript": structpb.NewStringValue(result.Text),
			"confidence": structpb.NewNumberValue(result.Confidence),
			"is_final":   structpb.NewBoolValue(result.IsFinal),
		}}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"results": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

func parseResults(msg *structpb.Struct) []transcribe.Result {
	list := msg.GetFields()["results"].GetListValue()
	results := make([]transcribe.Result, 0, len(list.GetValues()))
	for _, value := range list.GetValues() {
		fields := value.GetStructValue().GetFields()
		text := fields["transcript"].GetStringValue()
		if text == "" {
			continue
		}
		results = append(results, transcribe.Result{
			Text:       text,
			Confidence: fields["confidence"].GetNumberValue(),
			IsFinal:    fields["is_final"].GetBoolValue(),
		})
	}
	return results
}
