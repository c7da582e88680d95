// Package factory instantiates pluggable modules, such as metrics sinks, from
// configuration entries of the form
//
//	sinks:
//	  - type: influx
//	    conf:
//	      url: http://influx:8086
//	      bucket: battery
//
// Each implementation registers a Factory under its type name and decodes
// its conf map with Decode.
package factory
