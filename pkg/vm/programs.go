package vm

// The fixed programs behind the public operations. A conditional instruction
// followed by Mark and three instructions branches: success runs the Mark and the
// three, failure resumes right after them.
var (
	InitProgram = Program{I(OpInit), I(OpStop)}
	OpenProgram = Program{I(OpOpen), I(OpStop)}

	PutProgram = Program{I(OpLock), I(OpFind), I(OpNoMatch), I(OpAlloc), I(OpInsert), I(OpStop)}

	// UpdateProgram overwrites an existing key or inserts a new one.
	UpdateProgram = Program{
		I(OpLock), I(OpFind), I(OpMatch),
		I(OpMark), I(OpUpdate), I(OpStop), I(OpNop),
		I(OpAlloc), I(OpInsert), I(OpStop),
	}

	GetProgram    = Program{I(OpFind), I(OpMatch), I(OpRead), I(OpStop)}
	DeleteProgram = Program{I(OpLock), I(OpFind), I(OpMatch), I(OpFree), I(OpDelKey), I(OpStop)}

	// FindProgram leaves 1 in R0 when the key exists, 0 otherwise.
	FindProgram = Program{
		I(OpFind), I(OpMatch),
		I(OpMark), Const(RegR0, 1), I(OpStop), I(OpNop),
		Const(RegR0, 0), I(OpStop),
	}

	FirstProgram = boundary(OpFirst)
	LastProgram  = boundary(OpLast)
	NextProgram  = boundary(OpNext)
	PrevProgram  = boundary(OpPrev)

	LengthProgram = Program{I(OpLength), I(OpStop)}
	AvailProgram  = Program{I(OpAvail), I(OpStop)}

	// ClearForwardProgram deletes records from the smallest key until the index is empty.
	ClearForwardProgram  = clearing(OpFirst)
	ClearBackwardProgram = clearing(OpLast)

	ReadAtProgram    = Program{I(OpFind), I(OpMatch), I(OpReadAt), I(OpStop)}
	WriteAtProgram   = Program{I(OpLock), I(OpFind), I(OpMatch), I(OpWriteAt), I(OpStop)}
	ReadUntilProgram = Program{I(OpFind), I(OpMatch), I(OpScan), I(OpReadAt), I(OpStop)}

	// EqualProgram leaves 1 in R0 when the record bytes at Off equal the payload.
	EqualProgram = Program{
		I(OpFind), I(OpMatch), I(OpCompare),
		I(OpMark), Const(RegR0, 1), I(OpStop), I(OpNop),
		Const(RegR0, 0), I(OpStop),
	}

	CreateSubstoreProgram = Program{
		I(OpLock), I(OpName), I(OpFind), I(OpNoMatch),
		I(OpFormat), I(OpEntry), I(OpAlloc), I(OpInsert), I(OpStop),
	}
	EnterProgram = Program{I(OpName), I(OpFind), I(OpMatch), I(OpEnter), I(OpStop)}
	LeaveProgram = Program{I(OpLeave), I(OpSetRoot), I(OpStop)}

	HoldProgram   = Program{I(OpHold), I(OpStop)}
	UnlockProgram = Program{I(OpUnlock), I(OpStop)}
	SaveProgram   = Program{I(OpSave), I(OpStop)}
)

// boundary moves the cursor with op and leaves the key landed on, or 0 past either end.
func boundary(op Op) Program {
	return Program{
		I(op),
		I(OpMark), I(OpStop), I(OpNop), I(OpNop),
		Const(RegKey, 0), I(OpStop),
	}
}

func clearing(op Op) Program {
	return Program{
		I(OpLock), I(op),
		I(OpMark), I(OpFree), I(OpDelKey), I(OpLoop),
		I(OpStop),
	}
}
