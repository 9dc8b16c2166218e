package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// The fully-qualified name of the PiService.
	ServiceName = "hexpi.v1.PiService"
	// The full method name of the GetDigit RPC.
	GetDigitFullMethodName = "/" + ServiceName + "/GetDigit"
)

// Requests the hexadecimal digit of pi at the zero-based fractional index.
type GetDigitRequest struct {
	Index uint64 `json:"index"`
}

// Describes the PiService instance that handled a request.
type Metadata struct {
	Identity    string            `json:"identity,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// The hexadecimal digit of pi at Index, as a single character string.
type GetDigitResponse struct {
	Index    uint64    `json:"index"`
	Digit    string    `json:"digit"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// PiServiceServer is the server API for PiService.
type PiServiceServer interface {
	GetDigit(context.Context, *GetDigitRequest) (*GetDigitResponse, error)
}

// UnimplementedPiServiceServer may be embedded to have forward compatible
// implementations.
type UnimplementedPiServiceServer struct{}

func (UnimplementedPiServiceServer) GetDigit(context.Context, *GetDigitRequest) (*GetDigitResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetDigit not implemented") //nolint:wrapcheck // Errors returned should be gRPC statuses
}

func getDigitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) { //nolint:revive // Signature is defined by grpc.MethodHandler
	in := new(GetDigitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PiServiceServer).GetDigit(ctx, in) //nolint:forcetypeassert // Registration guarantees the type
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetDigitFullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PiServiceServer).GetDigit(ctx, req.(*GetDigitRequest)) //nolint:forcetypeassert // Registration guarantees the type
	}
	return interceptor(ctx, in, info, handler)
}

// The grpc.ServiceDesc for PiService.
var PiServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PiServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetDigit",
			Handler:    getDigitHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hexpi/v1/pi",
}

// Register the PiServiceServer implementation with a gRPC service registrar.
func RegisterPiServiceServer(s grpc.ServiceRegistrar, srv PiServiceServer) {
	s.RegisterService(&PiServiceDesc, srv)
}

// PiServiceClient is the client API for PiService.
type PiServiceClient interface {
	GetDigit(ctx context.Context, in *GetDigitRequest, opts ...grpc.CallOption) (*GetDigitResponse, error)
}

type piServiceClient struct {
	cc grpc.ClientConnInterface
}

// Return a PiServiceClient that uses the JSON codec on the connection.
func NewPiServiceClient(cc grpc.ClientConnInterface) PiServiceClient { //nolint:ireturn // Mirrors generated client constructors
	return &piServiceClient{cc}
}

func (c *piServiceClient) GetDigit(ctx context.Context, in *GetDigitRequest, opts ...grpc.CallOption) (*GetDigitResponse, error) {
	out := new(GetDigitResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, GetDigitFullMethodName, in, out, opts...); err != nil {
		return nil, err //nolint:wrapcheck // Errors returned should be gRPC statuses
	}
	return out, nil
}
