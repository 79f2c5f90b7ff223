// Package dispatch runs batches of jobs on process executors.
//
// A batch shares one completion signal sized to its job count. Each job gets
// its own executor and goroutine; Run blocks until the signal completes and
// returns one Result per job in submission order.
//
// Jobs are tracked by ID across batches so they can be inspected and stopped
// from other goroutines (the HTTP API does this):
//
//	d := dispatch.New(dispatch.Options{Master: jf.Master, Events: bus})
//	results, err := d.Run(ctx, dispatch.JobsFromFile(jf))
//	for _, r := range results {
//	    fmt.Println(r.JobID, r.ExitCode, r.Err)
//	}
package dispatch
