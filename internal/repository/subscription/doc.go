// Package subscription implements the durable store of push subscriptions.
//
// Repository is the contract the door service depends on: register a push
// endpoint under a fresh UUID, check that an id exists and list every stored
// endpoint. Backends are sqlite (the default), redis, postgres and an
// in-memory store for tests and development; Open picks one from config.
package subscription
