package protocol

// Reference (query) command codes.
const (
	QueryPower        = "PW"
	QueryInput        = "IP"
	QuerySignal       = "SC"
	QueryModel        = "MD"
	QueryPictureMode  = "PMPM"
	QueryLowLatency   = "PMLL"
	QueryMask         = "ISMA"
	QueryLampPower    = "PMLP"
	QueryLensAperture = "PMDI"
)

// Operation command codes.
const (
	OpPowerOn  = "PW1"
	OpPowerOff = "PW0"
	OpInput1   = "IP6" // HDMI 1
	OpInput2   = "IP7" // HDMI 2
)

// Raw power answer codes returned for a QueryPower reference.
const (
	PowerCodeStandby   = "0"
	PowerCodeOn        = "1"
	PowerCodeCooling   = "2"
	PowerCodeWarming   = "3"
	PowerCodeEmergency = "4"
)

// Raw input answer codes returned for a QueryInput reference.
const (
	InputCodeHDMI1 = "6"
	InputCodeHDMI2 = "7"
)

// Remote key operation codes. A remote key press is an operation with the
// RC73 class followed by the two-digit key code.
const (
	RemoteUp            = "RC7301"
	RemoteDown          = "RC7302"
	RemoteBack          = "RC7303"
	RemoteInput         = "RC7308"
	RemoteHide          = "RC731D"
	RemoteLensAp        = "RC7320"
	RemoteMenu          = "RC732E"
	RemoteOK            = "RC732F"
	RemoteLensControl   = "RC7330"
	RemoteRight         = "RC7334"
	RemoteLeft          = "RC7336"
	RemoteCinema        = "RC7368"
	RemoteNatural       = "RC736A"
	RemoteHDMI1         = "RC7370"
	RemoteHDMI2         = "RC7371"
	RemotePicAdj        = "RC7372"
	RemoteAdvancedMenu  = "RC7373"
	RemoteInfo          = "RC7374"
	RemoteGamma         = "RC7375"
	RemoteColorTemp     = "RC7376"
	RemoteColorProfile  = "RC7388"
	RemoteCMD           = "RC738A"
	Remote3DFormat      = "RC73D6"
	RemoteSettingMemory = "RC73D4"
	RemoteMode1         = "RC73D8"
	RemoteMode2         = "RC73D9"
	RemoteMode3         = "RC73DA"
	RemoteMPC           = "RC73F0"
	RemotePictureMode   = "RC73F4"
	RemoteGammaSettings = "RC73F5"
)

// SimpleCommands maps the named picture and lens commands to their
// operation codes. The names are the externally facing command vocabulary;
// the codes go on the wire verbatim.
var SimpleCommands = map[string]string{
	"LENS_MEMORY_1":  "INML0",
	"LENS_MEMORY_2":  "INML1",
	"LENS_MEMORY_3":  "INML2",
	"LENS_MEMORY_4":  "INML3",
	"LENS_MEMORY_5":  "INML4",
	"LENS_MEMORY_6":  "INML5",
	"LENS_MEMORY_7":  "INML6",
	"LENS_MEMORY_8":  "INML7",
	"LENS_MEMORY_9":  "INML8",
	"LENS_MEMORY_10": "INML9",

	"PICTURE_MODE_FILM":            "PMPM00",
	"PICTURE_MODE_CINEMA":          "PMPM01",
	"PICTURE_MODE_NATURAL":         "PMPM03",
	"PICTURE_MODE_HDR10":           "PMPM04",
	"PICTURE_MODE_THX":             "PMPM06",
	"PICTURE_MODE_FRAME_ADAPT_HDR": "PMPM0B",
	"PICTURE_MODE_USER1":           "PMPM0C",
	"PICTURE_MODE_USER2":           "PMPM0D",
	"PICTURE_MODE_USER3":           "PMPM0E",
	"PICTURE_MODE_USER4":           "PMPM0F",
	"PICTURE_MODE_USER5":           "PMPM10",
	"PICTURE_MODE_USER6":           "PMPM11",
	"PICTURE_MODE_HLG":             "PMPM14",
	"PICTURE_MODE_HDR10P":          "PMPM15",
	"PICTURE_MODE_PANA_PQ":         "PMPM16",

	"LOW_LATENCY_ON":  "PMLL1",
	"LOW_LATENCY_OFF": "PMLL0",

	"MASK_OFF":     "ISMA2",
	"MASK_CUSTOM1": "ISMA0",
	"MASK_CUSTOM2": "ISMA1",
	"MASK_CUSTOM3": "ISMA3",

	"LAMP_LOW":  "PMLP0",
	"LAMP_MID":  "PMLP2",
	"LAMP_HIGH": "PMLP1",

	"LENS_APERTURE_OFF":   "PMDI0",
	"LENS_APERTURE_AUTO1": "PMDI1",
	"LENS_APERTURE_AUTO2": "PMDI2",

	"LENS_ANAMORPHIC_OFF": "INVS0",
	"LENS_ANAMORPHIC_A":   "INVS1",
	"LENS_ANAMORPHIC_B":   "INVS2",
	"LENS_ANAMORPHIC_C":   "INVS3",
	"LENS_ANAMORPHIC_D":   "INVS4",
}

// RemoteKeys maps the named remote buttons to their operation codes.
var RemoteKeys = map[string]string{
	"UP":             RemoteUp,
	"DOWN":           RemoteDown,
	"LEFT":           RemoteLeft,
	"RIGHT":          RemoteRight,
	"OK":             RemoteOK,
	"BACK":           RemoteBack,
	"MENU":           RemoteMenu,
	"INFO":           RemoteInfo,
	"INPUT":          RemoteInput,
	"HIDE":           RemoteHide,
	"HDMI1":          RemoteHDMI1,
	"HDMI2":          RemoteHDMI2,
	"ADVANCED_MENU":  RemoteAdvancedMenu,
	"PICTURE_MODE":   RemotePictureMode,
	"COLOR_PROFILE":  RemoteColorProfile,
	"LENS_CONTROL":   RemoteLensControl,
	"SETTING_MEMORY": RemoteSettingMemory,
	"GAMMA_SETTINGS": RemoteGammaSettings,
	"GAMMA":          RemoteGamma,
	"COLOR_TEMP":     RemoteColorTemp,
	"3D_FORMAT":      Remote3DFormat,
	"PIC_ADJ":        RemotePicAdj,
	"CMD":            RemoteCMD,
	"MODE_1":         RemoteMode1,
	"MODE_2":         RemoteMode2,
	"MODE_3":         RemoteMode3,
	"LENS_AP":        RemoteLensAp,
	"MPC":            RemoteMPC,
	"NATURAL":        RemoteNatural,
	"CINEMA":         RemoteCinema,
}
