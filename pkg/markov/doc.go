/*
Package markov provides a database-backed toolkit for training order-n
Markov chain text models, blending several trained models into one with
per-model weights, and sampling validated sentences from the result.

Models live in SQLite tables; opening the database with a ":memory:"
data source gives a throwaway store that is rebuilt from the corpora on
every invocation. Combination is deterministic, and sentence sampling
draws from an injectable random source so runs can be reproduced with a
fixed seed.
*/
package markov
