package ddl

import "github.com/coredb-io/polystore/internal/lock"

func toLockRequests(reqs []lockRequest) []lock.Request {
	out := make([]lock.Request, len(reqs))
	for i, r := range reqs {
		mode := lock.Shared
		if r.Exclusive {
			mode = lock.Exclusive
		}
		out[i] = lock.Request{Entity: r.Entity, Mode: mode}
	}
	return out
}

func exclusive(entity int64) lockRequest { return lockRequest{Entity: entity, Exclusive: true} }
func shared(entity int64) lockRequest    { return lockRequest{Entity: entity, Exclusive: false} }
