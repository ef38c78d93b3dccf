package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/mo"

	"github.com/brevdev/hfi-regress/pkg/adapters"
	"github.com/brevdev/hfi-regress/pkg/retry"
)

// WaitForPort polls the socket table on h until every port in
// [port, port+count) shows state, querying at most policy.Attempts times.
func (r *Runner) WaitForPort(ctx context.Context, h Host, port int, state string, policy retry.Policy, count int) (bool, error) {
	err := retry.Poll(ctx, policy, func(attempt int) (bool, error) {
		res, err := r.Run(ctx, h, adapters.SocketQuery)
		if err != nil {
			return false, err
		}
		if !res.OK() {
			return false, nil
		}
		return adapters.PortsInState(res.Lines, state, port, count), nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		if r.log != nil {
			r.log.Logf(0, "%s: port %d never reached %s", h.Name, port, state)
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func LIDPath(device string) string {
	return fmt.Sprintf("/sys/class/infiniband/%s/ports/1/lid", device)
}

// GetLID reads port 1's LID from sysfs. Any failure is None.
func (r *Runner) GetLID(ctx context.Context, h Host, device string) mo.Option[uint32] {
	res, err := r.Run(ctx, h, "cat "+LIDPath(device))
	if err != nil || !res.OK() {
		return mo.None[uint32]()
	}
	lid, ok := adapters.ParseLID(res.Lines)
	if !ok {
		return mo.None[uint32]()
	}
	return mo.Some(lid)
}
