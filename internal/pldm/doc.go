// Package pldm owns the PLDM for Firmware Update wire contract.
//
// Ownership boundary:
// - common PLDM-over-MCTP message header
// - command, completion, result and activation code tables
// - per-command record encode/decode with bounds checks
//
// All multi-byte fields are little-endian and records are packed, as carried
// on the wire by DSP0267.
package pldm
