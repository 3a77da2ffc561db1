// Package protocol implements the packet layer of the XCP loader protocol:
// building the command packets a master sends to a bootloader, and decoding
// the responses it gets back.
//
// A packet is at most PacketSizeMax bytes and carries no framing, that is
// added by the transport. Every command starts with its command code and
// every response starts with a packet identifier.
//
// - `0xFF` - positive response, followed by the command specific data
// - `0xFE` - negative response, followed by a single error code
//
// Multi-byte values inside packets use the byte order of the slave. The order
// is only known after CONNECT, so everything that encodes or decodes a 16 or
// 32 bit value takes a ByteOrder.
//
// === Commands used by the loader
//
//   CONNECT        > FF mode
//                  < FF resources commMode maxCto maxDto(2) protoVer transportVer
//   GET_STATUS     > FD
//                  < FF session protection 00 configId(2)
//   GET_SEED       > F8 mode resource
//                  < FF remaining seed...
//   UNLOCK         > F7 remaining key...
//                  < FF protection
//   SET_MTA        > F6 00 00 00 address(4)
//                  < FF
//   UPLOAD         > F5 n
//                  < FF data(n)
//   PROGRAM_START  > D2
//                  < FF 00 commMode maxProgCto maxBs stMin queueSize
//   PROGRAM_CLEAR  > D1 00 00 00 length(4)
//                  < FF
//   PROGRAM        > D0 n data(n)
//                  < FF
//   PROGRAM_MAX    > C9 data(maxProgCto-1)
//                  < FF
//   PROGRAM_RESET  > CF
//                  < FF, or no response at all
//
// === Info table user commands
//
// The bootloader can compare a firmware info table against the one already
// programmed before anything gets erased. These are sub commands of USER_CMD.
//
//   GET_INFO       > F1 17 04
//                  < FF 00 length(2) address(4)
//   DOWNLOAD       > F1 17 06 n data(n)
//                  < FF 00
//   CHECK          > F1 17 08
//                  < FF 00 verdict
//
// A bootloader without info table support answers GET_INFO with
// `FE 20` (ERR_CMD_UNKNOWN).
package protocol
