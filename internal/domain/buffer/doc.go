// Package buffer smooths terminal output between a process read loop and a
// slower consumer such as a websocket.
//
// A Manager segments writes into bounded chunks, coalesces them on a flush
// tick, and sheds load with exact accounting once occupancy crosses its
// drop threshold. Producers never block: a stalled consumer costs dropped
// chunks, not a wedged pty reader. NativeProfile and SubprocessProfile
// provide tuning presets matched to the two terminal backends.
package buffer
