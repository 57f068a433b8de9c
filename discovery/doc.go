// Package discovery finds controller endpoints.
//
// Global Caché IP2SL bridges announce themselves with AMXB beacons on the
// multicast group 239.255.250.250:9131 roughly every ten seconds. DiscoverTCP
// listens for one interval and returns every bridge heard; Monitor keeps a
// live set for long-running processes. DiscoverSerial lists the local serial
// ports a controller could be attached to.
package discovery
