// Package engine wires a Monitor's subsystems together.
//
// The root package keeps the Monitor decoupled from the subsystem
// packages; engine sits above all of them and performs the concrete
// assembly: the resilient listings client with its breaker and cache,
// the region scanner, the target resolver, the extension registry and
// the scan scheduler.
//
//	m, _ := marketalert.New(
//		marketalert.WithStore(memory.New()),
//		marketalert.WithProvider(provider),
//	)
//	eng, err := engine.Build(m)
//	if err != nil {
//		return err
//	}
//	if err := m.Start(ctx); err != nil {
//		return err
//	}
//	defer m.Stop(context.Background())
//	_ = eng
package engine
