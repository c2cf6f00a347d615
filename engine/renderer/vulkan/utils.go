package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.EventSet:                  "VK_EVENT_SET",
	vk.EventReset:                "VK_EVENT_RESET",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.Suboptimal:                "VK_SUBOPTIMAL_KHR",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:       "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorSurfaceLost:          "VK_ERROR_SURFACE_LOST_KHR",
	vk.ErrorNativeWindowInUse:    "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	vk.ErrorOutOfDate:            "VK_ERROR_OUT_OF_DATE_KHR",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
}

// ResultString names a result code the way the Vulkan headers do.
func ResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// ResultIsSuccess reports whether the result is one of the success codes.
// Everything else reported by the driver is an error.
func ResultIsSuccess(result vk.Result) bool {
	switch result {
	case vk.Success, vk.NotReady, vk.Timeout, vk.EventSet, vk.EventReset, vk.Incomplete, vk.Suboptimal:
		return true
	}
	return false
}

// check turns a failed result into an error naming the call.
func check(result vk.Result, call string) error {
	if result == vk.Success {
		return nil
	}
	return fmt.Errorf("%s: %s", call, ResultString(result))
}

// safeString null-terminates s for the C side of the bindings.
func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

// cString reads a fixed size, null-terminated name out of a properties struct.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
