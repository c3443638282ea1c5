// Package async provides safe concurrent execution primitives.
//
// SafeGo runs a background task with a timeout and panic recovery:
//
//	async.SafeGo(ctx, logger, time.Minute, "secure token sweep", func(ctx context.Context) error {
//		return sweeper.Sweep(ctx)
//	})
//
// WorkerPool bounds CPU-heavy work. Do queues a task and waits for its result:
//
//	pool := async.NewWorkerPool(ctx, runtime.NumCPU(), "password hashing", 10*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	err := pool.Do(ctx, func(ctx context.Context) error {
//		digest = derive(password, salt)
//		return nil
//	})
package async
