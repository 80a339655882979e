package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier(t *testing.T) {
	var n Notifier[int]
	var a, b []int

	unsubA := n.Subscribe(func(v int) { a = append(a, v) })
	n.Subscribe(func(v int) { b = append(b, v) })

	n.Publish(1)
	unsubA()
	unsubA()
	n.Publish(2)

	assert.Equal(t, []int{1}, a)
	assert.Equal(t, []int{1, 2}, b)
}

func TestNotifierCallbackMayUnsubscribe(t *testing.T) {
	var n Notifier[string]
	calls := 0
	var unsub func()
	unsub = n.Subscribe(func(string) {
		calls++
		unsub()
	})

	n.Publish("x")
	n.Publish("y")
	assert.Equal(t, 1, calls)
}
