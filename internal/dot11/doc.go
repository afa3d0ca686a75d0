// Package dot11 defines the 802.11 management frames the bandit engine
// evaluates: beacons, probe responses and deauthentications, each carrying the
// radiotap signal metadata it was captured with.
//
// Frames are produced from packets already decoded by gopacket (see
// FromPacket); this package does not parse raw radio bytes itself.
package dot11
