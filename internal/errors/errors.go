package gerr

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	InvalidFilter       = status.Error(codes.InvalidArgument, "invalid filter")
	ShopNotFound        = status.Error(codes.NotFound, "shop not found")
	UpstreamQueryFailed = status.Error(codes.Unavailable, "upstream query failed")
	MetadataFetchFailed = status.Error(codes.Internal, "metadata fetch failed")
)
