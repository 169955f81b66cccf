package models

import (
	"github.com/smazurov/effectnode/internal/effect"
	"github.com/smazurov/effectnode/internal/infrared"
	"github.com/smazurov/effectnode/internal/logging"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-01T00:00:00Z" doc:"Build date"`
	Modified  bool   `json:"modified" doc:"Built from a tree with uncommitted changes"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go version used to build"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Build platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Effect models
type EffectData struct {
	effect.Snapshot
	Register string `json:"register" example:"shift" doc:"Output register the effect writes"`
	Mask     uint32 `json:"mask" example:"31" doc:"Bits of the register the effect owns"`
	Kind     string `json:"kind" example:"sequence" doc:"Effect kind (ramp, sequence)"`
}

type EffectListData struct {
	Effects []EffectData `json:"effects" doc:"Configured effects"`
	Count   int          `json:"count" example:"2" doc:"Number of effects"`
}

type EffectListResponse struct {
	Body EffectListData
}

type EffectResponse struct {
	Body EffectData
}

type EffectRequest struct {
	Name string `path:"name" example:"lamp_eye" doc:"Effect name"`
}

type EffectActionRequest struct {
	Name   string `path:"name" example:"lamp_eye" doc:"Effect name"`
	Action string `path:"action" enum:"start,pause,resume,stop,force-restart,on,off,reset-driver" example:"start" doc:"Action to perform"`
}

// Motor models
type MotorData struct {
	Name               string       `json:"name" example:"pitch" doc:"Axis name"`
	Register           string       `json:"register" example:"pitch" doc:"Coil register"`
	StepsPerRevolution int          `json:"steps_per_revolution" example:"512" doc:"Full steps per output revolution"`
	State              effect.State `json:"state" example:"idle" doc:"Rotation task state"`
}

type MotorListData struct {
	Motors []MotorData `json:"motors" doc:"Configured stepper axes"`
	Count  int         `json:"count" example:"2" doc:"Number of axes"`
}

type MotorListResponse struct {
	Body MotorListData
}

type RotateRequest struct {
	Axis string `path:"axis" example:"pitch" doc:"Axis name"`
	Body struct {
		Angle int `json:"angle" minimum:"-360" maximum:"360" example:"90" doc:"Relative angle in degrees, negative turns counter-clockwise"`
	}
}

type RotateData struct {
	Axis  string `json:"axis" example:"pitch" doc:"Axis name"`
	Angle int    `json:"angle" example:"90" doc:"Requested angle"`
	Steps int    `json:"steps" example:"128" doc:"Steps the rotation will take"`
}

type RotateResponse struct {
	Body RotateData
}

// Infrared models
type IRSendRequest struct {
	Body struct {
		IRCode string `json:"ir_code" minLength:"1" example:"A1B2C3" doc:"Code to transmit"`
	}
}

type IRSendData struct {
	Status  string `json:"status" example:"success" doc:"Send status"`
	Message string `json:"message" example:"IR code sent" doc:"Status message"`
}

type IRSendResponse struct {
	Body IRSendData
}

type IRReadData struct {
	Status string   `json:"status" example:"success" doc:"success when a code is pending, empty otherwise"`
	IRData string   `json:"ir_data" example:"A1B2C3" doc:"Most recently received code"`
	Codes  []string `json:"codes,omitempty" doc:"Every pending code, oldest first"`
	Count  int      `json:"count" example:"1" doc:"Number of pending codes"`
}

type IRReadResponse struct {
	Body IRReadData
}

type IRStatusResponse struct {
	Body infrared.Status
}

type IRClearResponse struct {
	Body struct {
		Status string `json:"status" example:"success" doc:"Clear status"`
	}
}

// Register models
type RegisterData struct {
	Name  string `json:"name" example:"shift" doc:"Register name"`
	Width uint   `json:"width" example:"8" doc:"Width in bits"`
	Value uint32 `json:"value" example:"3" doc:"Last value written"`
}

type RegisterListResponse struct {
	Body struct {
		Registers []RegisterData `json:"registers" doc:"Output registers"`
	}
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" minimum:"0" example:"100" doc:"Return at most this many of the newest entries (0 for all)"`
	Module string `query:"module" example:"effects" doc:"Only entries from this module"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int                `json:"count" example:"42" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

type LogLevelsResponse struct {
	Body struct {
		Levels map[string]string `json:"levels" doc:"Current level per module"`
	}
}

type SetLogLevelRequest struct {
	Module string `path:"module" example:"effects" doc:"Logger module"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}
