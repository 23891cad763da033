// Package optim tunes policy parameters by exhaustive search.
package optim
