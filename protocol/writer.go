package protocol

// The encoders below build slave responses. The loader never sends these, they
// exist for the simulated slave and for tests.

func AckResponse() Packet {
	return Packet{PIDResponse}
}

func NegativeResponse(code ErrorCode) Packet {
	return Packet{PIDError, byte(code)}
}

func EncodeConnect(c *ConnectResponse) Packet {
	var commMode byte
	if c.Order == BigEndian {
		commMode |= commModeByteOrder
	}

	dto := Encode16(uint16(c.MaxDto), c.Order)

	// protocol layer and transport layer version follow the sizes
	return Packet{PIDResponse, byte(c.Resources), commMode, byte(c.MaxCto), dto[0], dto[1], 1, 1}
}

func EncodeStatus(s *StatusResponse, order ByteOrder) Packet {
	id := Encode16(s.ConfigID, order)
	return Packet{PIDResponse, s.SessionStatus, byte(s.Protection), 0, id[0], id[1]}
}

func EncodeSeed(s *SeedResponse) Packet {
	p := make(Packet, 0, 2+len(s.Seed))
	p = append(p, PIDResponse, byte(s.Remaining))
	return append(p, s.Seed...)
}

func EncodeUnlock(protection Resource) Packet {
	return Packet{PIDResponse, byte(protection)}
}

func EncodeUpload(data []byte) Packet {
	p := make(Packet, 0, 1+len(data))
	p = append(p, PIDResponse)
	return append(p, data...)
}

func EncodeProgramStart(s *ProgramStartResponse) Packet {
	// MAX_BS, MIN_ST and QUEUE_SIZE are not used by the loader
	return Packet{PIDResponse, 0, s.CommMode, byte(s.MaxProgCto), 0, 0, 0}
}

func EncodeInfoTableInfo(i *InfoTableInfo, order ByteOrder) Packet {
	l := Encode16(i.Length, order)
	a := Encode32(i.Address, order)
	return Packet{PIDResponse, 0, l[0], l[1], a[0], a[1], a[2], a[3]}
}

func EncodeInfoTableDownload() Packet {
	return Packet{PIDResponse, 0}
}

func EncodeInfoTableCheck(okay bool) Packet {
	var verdict byte
	if okay {
		verdict = 1
	}

	return Packet{PIDResponse, 0, verdict}
}
