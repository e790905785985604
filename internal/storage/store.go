package storage

import "context"

type Store interface {
	SaveTranscript(ctx context.Context, conversationID string, data []byte) error
	LoadTranscript(ctx context.Context, conversationID string) ([]byte, error)
	ListTranscriptIDs(ctx context.Context, limit int) ([]string, error)
	SaveLeaveRequest(ctx context.Context, requestID string, data []byte) error
	LoadLeaveRequest(ctx context.Context, requestID string) ([]byte, error)
	ListLeaveRequests(ctx context.Context, limit int) ([][]byte, error)
}
