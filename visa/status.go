// Package visa mirrors the fixed numeric header of the IVI Foundation VISA
// specification: status codes, interface-type codes, and the handful of
// session attributes this core needs to read or write. These values are
// part of the public ABI contract described in spec.md §6; the core never
// invents new ones.
package visa

// Status is a VISA completion or error code as returned by the C ABI's
// ViStatus. Only the subset this core produces is defined here.
type Status int32

// Completion codes. Negative values (high bit set in the 32-bit ViStatus)
// are errors; VI_SUCCESS and the VI_SUCCESS_* family are non-negative.
const (
	StatusSuccess         Status = 0x00000000
	StatusSuccessTermChar Status = 0x3FFF0005
	StatusSuccessMaxCnt   Status = 0x3FFF0006

	StatusErrorSystemError Status = -0x40010000 // 0xBFFF0000
	StatusErrorInvObject   Status = -0x4000FFF2 // 0xBFFF000E
	StatusErrorRsrcLocked  Status = -0x4000FFF1 // 0xBFFF000F
	StatusErrorRsrcNFound  Status = -0x4000FFEF // 0xBFFF0011
	StatusErrorInvRsrcName Status = -0x4000FFEE // 0xBFFF0012
	StatusErrorTMO         Status = -0x4000FFEB // 0xBFFF0015
	StatusErrorNSupAttr    Status = -0x4000FFE3 // 0xBFFF001D
	StatusErrorAlloc       Status = -0x4000FFC4 // 0xBFFF003C
	StatusErrorIO          Status = -0x4000FFC2 // 0xBFFF003E
	StatusErrorNSupMode    Status = -0x4000FFBA // 0xBFFF0046
	StatusErrorConnLost    Status = -0x4000FF93 // 0xBFFF006D
	StatusErrorNSupOper    Status = -0x4000FF99 // 0xBFFF0067, not-supported operation (GPIB w/o controller)
)

// Kind is the closed error taxonomy of spec.md §7, independent of the
// numeric ABI values above. Every transport/session/discovery call
// returns exactly one Kind; the ABI shim (out of scope here) maps a Kind
// back to a Status.
type Kind int

const (
	Success Kind = iota
	SuccessTermChar
	SuccessMaxCnt
	InvalidObject
	InvalidResourceName
	ResourceNotFound
	ResourceLocked
	Timeout
	IO
	ConnectionLost
	AllocationFailure
	NotSupported
	UnsupportedAttribute
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case SuccessTermChar:
		return "success_termchar"
	case SuccessMaxCnt:
		return "success_maxcnt"
	case InvalidObject:
		return "invalid_object"
	case InvalidResourceName:
		return "invalid_resource_name"
	case ResourceNotFound:
		return "resource_not_found"
	case ResourceLocked:
		return "resource_locked"
	case Timeout:
		return "timeout"
	case IO:
		return "io"
	case ConnectionLost:
		return "connection_lost"
	case AllocationFailure:
		return "allocation_failure"
	case NotSupported:
		return "not_supported"
	case UnsupportedAttribute:
		return "unsupported_attribute"
	default:
		return "unknown"
	}
}

// ToStatus maps a Kind onto the fixed IVI numeric header.
func (k Kind) ToStatus() Status {
	switch k {
	case Success:
		return StatusSuccess
	case SuccessTermChar:
		return StatusSuccessTermChar
	case SuccessMaxCnt:
		return StatusSuccessMaxCnt
	case InvalidObject:
		return StatusErrorInvObject
	case InvalidResourceName:
		return StatusErrorInvRsrcName
	case ResourceNotFound:
		return StatusErrorRsrcNFound
	case ResourceLocked:
		return StatusErrorRsrcLocked
	case Timeout:
		return StatusErrorTMO
	case IO:
		return StatusErrorIO
	case ConnectionLost:
		return StatusErrorConnLost
	case AllocationFailure:
		return StatusErrorAlloc
	case NotSupported:
		return StatusErrorNSupOper
	case UnsupportedAttribute:
		return StatusErrorNSupAttr
	default:
		return StatusErrorSystemError
	}
}

// IntfType is the VI_INTF_* interface-kind code.
type IntfType uint16

const (
	IntfGPIB  IntfType = 1
	IntfASRL  IntfType = 4
	IntfTCPIP IntfType = 6
	IntfUSB   IntfType = 7
)

// Attribute is a VI_ATTR_* session attribute id.
type Attribute uint32

const (
	AttrSendEndEn  Attribute = 0x3FFF0016
	AttrTermChar   Attribute = 0x3FFF0018
	AttrTMOValue   Attribute = 0x3FFF001A
	AttrTermCharEn Attribute = 0x3FFF0038
	AttrIntfType   Attribute = 0x3FFF0171
)
