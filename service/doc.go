// Package service is the quoter for one GigaDex market. It owns the
// snapshot store and is the only writer to it: account updates from RPC,
// Kafka or a replayed journal all enter through QuoteService.Apply, and
// every quote reads exactly one published snapshot.
//
// The package has no transport code; api/ and jobs/ drive it.
package service
