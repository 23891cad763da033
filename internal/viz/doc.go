// Package viz provides the interactive terminal view of a cart-pole
// environment, built on Bubble Tea.
//
// The view steps an [env.Env] in real time, driving it either with a
// policy or from the keyboard, and draws the cart on a braille canvas
// next to live readouts and a pole-angle history chart.
//
// # Key Bindings
//
//	Space  - Pause/Resume
//	R      - Reset the episode
//	←/H →/L - Push the cart left/right (manual mode)
//	0      - Release the manual push
//	M      - Toggle manual control and policy
//	?      - Show help overlay
//	Q      - Quit
package viz
