package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/memes/hexpi/pkg/api"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// The maximum number of digits that can be requested in a single REST call.
	MaxRestDigitCount = 1024
	contentTypeHeader = "Content-Type"
	jsonContentType   = "application/json"
)

// Returned when a REST request asks for too many digits.
var ErrCountTooLarge = fmt.Errorf("count must be <= %d", MaxRestDigitCount)

// The REST response to a request for a run of digits.
type DigitsResponse struct {
	Start    uint64        `json:"start"`
	Digits   string        `json:"digits"`
	Metadata *api.Metadata `json:"metadata,omitempty"`
}

// The REST response body for a failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) error {
	w.Header().Set(contentTypeHeader, jsonContentType)
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		return fmt.Errorf("failed to encode %T response: %w", body, err)
	}
	return nil
}

// Writes the gRPC status of err as a REST error response.
func (s *PiServer) writeError(w http.ResponseWriter, err error) {
	st, _ := status.FromError(err)
	if err := writeJSON(w, runtime.HTTPStatusFromCode(st.Code()), ErrorResponse{
		Code:    st.Code().String(),
		Message: st.Message(),
	}); err != nil {
		s.logger.Error(err, "Writing error response raised an error; continuing")
	}
}

// Parses the named value as an unsigned integer, returning an InvalidArgument
// status if it is malformed.
func parseUint(name, value string, bitSize int) (uint64, error) {
	result, err := strconv.ParseUint(value, 10, bitSize)
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("invalid %s %q: %v", name, value, err)) //nolint:wrapcheck // Errors returned should be gRPC statuses
	}
	return result, nil
}

// Create a new REST gateway handler that translates and forwards incoming REST
// requests to the specified gRPC endpoint address. The gRPC connection is closed
// when ctx is done.
//
//nolint:funlen // Handler closures make this function appear longer than expected.
func (s *PiServer) NewRestGatewayHandler(ctx context.Context, grpcAddress string) (http.Handler, error) {
	conn, err := grpc.NewClient(grpcAddress, s.dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for REST gateway: %w", err)
	}
	go func() {
		<-ctx.Done()
		if err := conn.Close(); err != nil {
			s.logger.Error(err, "Failed to close REST gateway gRPC connection")
		}
	}()
	client := api.NewPiServiceClient(conn)
	mux := runtime.NewServeMux()
	if err := mux.HandlePath(http.MethodGet, "/api/v1/digit/{index}",
		func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
			span := trace.SpanFromContext(r.Context())
			span.SetAttributes(attribute.String(OpenTelemetryPackageIdentifier+".index", pathParams["index"]))
			index, err := parseUint("index", pathParams["index"], 64)
			if err != nil {
				s.writeError(w, err)
				return
			}
			response, err := client.GetDigit(r.Context(), &api.GetDigitRequest{Index: index})
			if err != nil {
				s.writeError(w, err)
				return
			}
			if err := writeJSON(w, http.StatusOK, response); err != nil {
				s.logger.Error(err, "Writing digit response raised an error; continuing")
			}
		},
	); err != nil {
		return nil, fmt.Errorf("failed to register /api/v1/digit handler for REST gateway: %w", err)
	}
	if err := mux.HandlePath(http.MethodGet, "/api/v1/digits",
		func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			query := r.URL.Query()
			start, err := parseUint("start", query.Get("start"), 64)
			if err != nil {
				s.writeError(w, err)
				return
			}
			count, err := parseUint("count", query.Get("count"), 32)
			if err != nil {
				s.writeError(w, err)
				return
			}
			if count > MaxRestDigitCount {
				s.writeError(w, status.Error(codes.InvalidArgument, ErrCountTooLarge.Error()))
				return
			}
			if count > 0 && start > math.MaxUint64-(count-1) {
				s.writeError(w, status.Error(codes.InvalidArgument, ErrIndexTooLarge.Error()))
				return
			}
			span := trace.SpanFromContext(r.Context())
			span.SetAttributes(
				attribute.String(OpenTelemetryPackageIdentifier+".start", query.Get("start")),
				attribute.String(OpenTelemetryPackageIdentifier+".count", query.Get("count")),
			)
			digits := make([]byte, 0, count)
			for i := uint64(0); i < count; i++ {
				response, err := client.GetDigit(r.Context(), &api.GetDigitRequest{Index: start + i})
				if err != nil {
					s.writeError(w, err)
					return
				}
				digits = append(digits, response.Digit...)
			}
			if err := writeJSON(w, http.StatusOK, DigitsResponse{
				Start:    start,
				Digits:   string(digits),
				Metadata: s.metadata,
			}); err != nil {
				s.logger.Error(err, "Writing digits response raised an error; continuing")
			}
		},
	); err != nil {
		return nil, fmt.Errorf("failed to register /api/v1/digits handler for REST gateway: %w", err)
	}
	return otelhttp.NewHandler(mux,
		OpenTelemetryPackageIdentifier+"/RestGatewayHandler",
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
	), nil
}
