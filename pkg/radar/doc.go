// Package radar coordinates the sweep, the distance measurement and the
// host commands of a radar.
//
// Three tasks run concurrently: the Dispatcher executes host frames held
// by the modbus.Server, the Sweep moves the steering gears according to
// the latest requested State, and the Measurer samples the distance
// sensor whenever the steering gears report they are in place. Sweep and
// Measurer meet on the bits of an EventGroup.
package radar
