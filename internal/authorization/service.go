package authorization

import "context"

type Service interface {
	Authorize(ctx context.Context, role string, object string, action string) error
}
