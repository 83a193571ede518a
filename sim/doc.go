// Package sim is a process-oriented discrete event simulation kernel.
//
// A simulation is made of events and processes. Events sit in a future event
// list ordered by time and are handled one by one by the Simulator. Processes
// are routines that run in simulated time: a process can wait for some time
// to pass with AdvanceTime, or wait for a Predicate to become true with
// WaitUntil. Processes run on their own goroutines, but the Simulator hands
// control to only one of them at a time, so the application state never needs
// locking as long as it is only touched by process bodies and event handlers.
//
//	s := sim.NewSimulator(nil)
//	s.AddProcess("hello", 1, func(ctx *sim.ProcessCtx) error {
//		if err := ctx.AdvanceTime(2); err != nil {
//			return err
//		}
//		fmt.Println("now", ctx.Now())
//		return nil
//	})
//	now, err := s.Run(sim.Forever)
package sim
