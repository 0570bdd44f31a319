// Package core runs CSV merges for the HTTP server and the CLI.
//
// The package sits between the transport layers and the merge engine. It
// resolves a merge profile, decodes each input in the order given, folds the
// rows into a [merge.Merger] and hands back the merged table with per-source
// statistics. It has no HTTP or terminal dependencies.
//
// # Runs
//
// A run is started with [Service.Merge]:
//
//	res, err := svc.Merge(ctx, core.MergeRequest{
//	    Profile: "filtered",
//	    Sources: []core.NamedSource{
//	        {Name: "a.csv", Reader: a},
//	        {Name: "b.csv", Reader: b},
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	return svc.WriteCSV(w, res)
//
// Runs are all-or-nothing. The first source that fails to decode fails the
// whole run and no result is returned. Malformed rows are the exception: with
// the default skip policy they are counted in [SourceStats.Skipped] and
// dropped.
//
// Every run gets a UUID and is written to the history store (success or
// failure) and to the Prometheus metrics. A [Limiter] caps how many runs
// execute at once; callers that cannot get a slot in time receive
// [ErrTooBusy]. [Service.StartRetentionScheduler] prunes old history.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - CSV001-CSV004: Input format errors (no header, malformed row, open quote, dialect)
//   - FILE001-FILE005: File errors (size, type, read, missing, empty)
//   - MRG001-MRG003: Merge settings (profile, options, file count)
//   - UPL001-UPL005: Upload errors (size, busy, form, cancelled, timeout)
package core
