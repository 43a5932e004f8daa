/*
Package markov provides a character-level Markov chain text generator.

A TextGenerator slides a fixed-size window over training text and records
which character followed each window. Generation starts from a seed state and
repeatedly picks a recorded successor uniformly at random, so successors seen
more often in training come up more often. A Store keeps named chains in a
SQLite database and can export and import them as JSON.
*/
package markov
