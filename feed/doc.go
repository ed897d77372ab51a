// Package feed reads candidate stories from the Hacker News Firebase API.
//
// ListTopItemIDs returns a ranked id list (top, new or best stories) in
// upstream order. FetchItem resolves one id to a core.Item and filters out
// anything that cannot be ingested, returning nil rather than an error so a
// single bad id never blocks a batch. Transport failures wrap ErrTransport.
//
// Requests are spaced by a token bucket limiter; the default of ten per
// second keeps a full run well inside the API's informal politeness limits.
package feed
