package reply

import (
	"bytes"
	"context"

	pool "github.com/jolestar/go-commons-pool/v2"
)

// scratchFactory hands out reusable *bytes.Buffer values for the
// encoder. Pooling these avoids an allocation per frame on the hot
// write path, the same object-pool pattern the teacher uses for
// backend connections (cluster/client_pool.go), repurposed here for
// scratch buffers instead of sockets.
type scratchFactory struct{}

func (scratchFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 256))
	return pool.NewPooledObject(buf), nil
}

func (scratchFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (scratchFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	return true
}

func (scratchFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (scratchFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	buf := object.Object.(*bytes.Buffer)
	buf.Reset()
	return nil
}

var scratchPool = func() *pool.ObjectPool {
	cfg := pool.NewDefaultPoolConfig()
	cfg.MaxTotal = 256
	cfg.MaxIdle = 64
	cfg.BlockWhenExhausted = false
	return pool.NewObjectPool(context.Background(), scratchFactory{}, cfg)
}()

// getScratch borrows a reset buffer; on pool exhaustion it falls back
// to a fresh allocation rather than blocking the hot path.
func getScratch() *bytes.Buffer {
	obj, err := scratchPool.BorrowObject(context.Background())
	if err != nil {
		return bytes.NewBuffer(make([]byte, 0, 256))
	}
	return obj.(*bytes.Buffer)
}

// putScratch returns a buffer borrowed from getScratch. Buffers that
// were allocated on the fallback path are simply dropped.
func putScratch(buf *bytes.Buffer) {
	_ = scratchPool.ReturnObject(context.Background(), buf)
}
